package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
)

const modulePrefix = "menagerie/server/"

type packageInfo struct {
	ImportPath string
	Imports    []string
}

// layer rules: packages under each key may not import any of the listed
// prefixes. The spatial core stays independent of the world and everything
// that drives it.
var forbidden = map[string][]string{
	"internal/grid":    {"internal/terrain", "internal/regions", "internal/nav", "internal/world", "internal/sim", "internal/net", "internal/app", "internal/persistence"},
	"internal/terrain": {"internal/regions", "internal/nav", "internal/world", "internal/sim", "internal/net", "internal/app", "internal/persistence"},
	"internal/regions": {"internal/terrain", "internal/nav", "internal/world", "internal/sim", "internal/net", "internal/app", "internal/persistence"},
	"internal/nav":     {"internal/terrain", "internal/regions", "internal/world", "internal/sim", "internal/net", "internal/app", "internal/persistence"},
	"internal/world":   {"internal/sim", "internal/net", "internal/app", "internal/persistence"},
	"internal/sim":     {"internal/net", "internal/app", "internal/persistence"},
}

func main() {
	cmd := exec.Command("go", "list", "-json", "./internal/...")
	cmd.Env = os.Environ()
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Stderr.Write(exitErr.Stderr)
		}
		fmt.Fprintf(os.Stderr, "depscheck: failed to list packages: %v\n", err)
		os.Exit(1)
	}

	decoder := json.NewDecoder(bytes.NewReader(output))

	var violations []string
	for {
		var pkg packageInfo
		if err := decoder.Decode(&pkg); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			fmt.Fprintf(os.Stderr, "depscheck: failed to decode package info: %v\n", err)
			os.Exit(1)
		}
		violations = append(violations, check(pkg)...)
	}

	if len(violations) > 0 {
		sort.Strings(violations)
		fmt.Fprintln(os.Stderr, "depscheck: found forbidden imports:")
		for _, violation := range violations {
			fmt.Fprintf(os.Stderr, "  %s\n", violation)
		}
		os.Exit(1)
	}
}

func check(pkg packageInfo) []string {
	rel := strings.TrimPrefix(pkg.ImportPath, modulePrefix)
	var violations []string
	for layer, banned := range forbidden {
		if rel != layer && !strings.HasPrefix(rel, layer+"/") {
			continue
		}
		for _, imp := range pkg.Imports {
			target := strings.TrimPrefix(imp, modulePrefix)
			for _, prefix := range banned {
				if target == prefix || strings.HasPrefix(target, prefix+"/") {
					violations = append(violations, fmt.Sprintf("%s -> %s", pkg.ImportPath, imp))
				}
			}
		}
	}
	return violations
}
