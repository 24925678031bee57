package version

import (
	"fmt"
	"strings"
)

const validCharacters = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-"

const (
	appMajor uint = 0
	appMinor uint = 1
	appPatch uint = 0
)

// appBuild is overridable at build time via
// '-ldflags "-X github.com/shardflow/flowdag/version.appBuild=foo"'.
var appBuild string

var version string

// Version returns the application version as a properly formed string.
func Version() string {
	if version == "" {
		version = fmt.Sprintf("%d.%d.%d", appMajor, appMinor, appPatch)
		if build := checkAppBuild(appBuild); build != "" {
			version = fmt.Sprintf("%s-%s", version, build)
		}
	}
	return version
}

func checkAppBuild(str string) string {
	for _, r := range str {
		if !strings.ContainsRune(validCharacters, r) {
			return ""
		}
	}
	return str
}
