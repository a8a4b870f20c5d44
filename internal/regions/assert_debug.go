//go:build regionsdebug

package regions

const debugAssertions = true
