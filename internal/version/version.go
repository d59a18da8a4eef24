package version

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Service — имя сервиса в логах и ответе /version.
const Service = "artcart-storefront"

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Info возвращает сведения о сборке, заданные через -ldflags.
func Info() (v, c, d string) { return version, commit, date }

// GetVersion возвращает версию сборки.
func GetVersion() string { return version }

// GetCommit возвращает commit сборки.
func GetCommit() string { return commit }

// GetDate возвращает дату сборки.
func GetDate() string { return date }

// Fields — сведения о сборке для стартовой записи лога.
func Fields() log.Fields {
	return log.Fields{
		"service": Service,
		"version": version,
		"commit":  commit,
		"built":   date,
	}
}

func String() string {
	return fmt.Sprintf("%s version=%s commit=%s date=%s", Service, version, commit, date)
}
