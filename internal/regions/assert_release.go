//go:build !regionsdebug

package regions

const debugAssertions = false
