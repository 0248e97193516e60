// File: moduleloader/moduleloader.go
package moduleloader

import (
	"fmt"
	"strings"

	"github.com/dop251/goja"
	"github.com/usagestats/usagestats/charts"
	"github.com/usagestats/usagestats/logger"
)

const DatesModule = "usagestats/dates"

// SetupRequire returns the require function exposed to transform scripts.
func SetupRequire(log logger.Logger) func(moduleName string) interface{} {
	return func(moduleName string) interface{} {
		switch moduleName {
		case DatesModule:
			return createDatesModule()
		case "console":
			return createConsoleModule(log)
		}
		return nil
	}
}

// SetupConsoleModule binds the global console object to the logger.
func SetupConsoleModule(vm *goja.Runtime, log logger.Logger) {
	vm.Set("console", createConsoleModule(log))
}

// createDatesModule exposes the date helpers the built-in transforms use.
func createDatesModule() map[string]interface{} {
	return map[string]interface{}{
		"monthLabel": func(dateRange string) (string, error) {
			return charts.MonthLabel(dateRange)
		},
	}
}

func createConsoleModule(log logger.Logger) map[string]interface{} {
	format := func(args []interface{}) string {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = fmt.Sprint(a)
		}
		return strings.Join(parts, " ")
	}
	return map[string]interface{}{
		"log": func(args ...interface{}) {
			log.Info(format(args), map[string]interface{}{"source": "script"})
		},
		"warn": func(args ...interface{}) {
			log.Warn(format(args), map[string]interface{}{"source": "script"})
		},
		"error": func(args ...interface{}) {
			log.Error(format(args), map[string]interface{}{"source": "script"})
		},
	}
}
