// Package version хранит сведения о сборке watermate, проставляемые через -ldflags:
//
//	-X github.com/vladislavdragonenkov/watermate/internal/version.version=v1.2.0
package version

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Build — сведения о текущей сборке.
type Build struct {
	Version string
	Commit  string
	Date    string
}

// Current возвращает сведения о сборке; пустые ldflags заменяются значениями по умолчанию.
func Current() Build {
	return Build{
		Version: orDefault(version, "dev"),
		Commit:  orDefault(commit, "unknown"),
		Date:    orDefault(date, "unknown"),
	}
}

// GetVersion возвращает версию сборки для healthcheck и ресурса трассировки.
func GetVersion() string { return Current().Version }

// Dev сообщает, что бинарник собран без -ldflags.
func (b Build) Dev() bool { return b.Version == "dev" }

// String возвращает строку для стартового лога.
func (b Build) String() string {
	return fmt.Sprintf("watermate %s (commit=%s date=%s)", b.Version, b.Commit, b.Date)
}

// Fields — поля для logrus.
func (b Build) Fields() log.Fields {
	return log.Fields{
		"version":    b.Version,
		"commit":     b.Commit,
		"build_date": b.Date,
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
