//go:build integration

package testdb

import (
	"net/url"
	"os"
	"strings"
)

// EnvTestDatabaseURL names an existing database to test against instead of
// starting a container.
const EnvTestDatabaseURL = "CADENCE_TEST_DATABASE_URL"

var ciVars = []string{
	"CI",
	"GITHUB_ACTIONS",
	"GITLAB_CI",
	"JENKINS_URL",
	"CIRCLECI",
}

// IsCI reports whether the tests run under a CI provider.
func IsCI() bool {
	for _, name := range ciVars {
		if os.Getenv(name) != "" {
			return true
		}
	}
	return false
}

// DatabaseURL returns the externally provided test database URL, if any.
func DatabaseURL() string {
	return os.Getenv(EnvTestDatabaseURL)
}

// MaskURL hides the password of a database URL for logging.
func MaskURL(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	pw, ok := u.User.Password()
	if !ok {
		return dsn
	}
	return strings.Replace(dsn, ":"+pw+"@", ":****@", 1)
}
