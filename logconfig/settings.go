package logconfig

import (
	"os"

	myLogger "github.com/sirupsen/logrus"
)

func terminalFormatter() myLogger.Formatter {
	return &myLogger.TextFormatter{
		ForceColors:            true,
		DisableTimestamp:       true,
		DisableLevelTruncation: true,
		PadLevelText:           true,
	}
}

func apply(level myLogger.Level, caller bool, f myLogger.Formatter) {
	myLogger.SetReportCaller(caller)
	myLogger.SetLevel(level)
	myLogger.SetFormatter(f)
}

// ConfigDebugLogger is the terminal setup of tests and local runs.
func ConfigDebugLogger() {
	apply(myLogger.DebugLevel, true, terminalFormatter())
}

func ConfigInfoLogger() {
	apply(myLogger.InfoLevel, false, terminalFormatter())
}

// ConfigProductionLogger writes JSON lines to stdout.
func ConfigProductionLogger() {
	myLogger.SetOutput(os.Stdout)
	apply(myLogger.InfoLevel, false, &myLogger.JSONFormatter{})
}

// ConfigLogger picks a setup from the configured level name.
// "debug" and "info" use the terminal text format, anything else
// is parsed as a logrus level on top of the production format.
func ConfigLogger(level string) {
	switch level {
	case "debug":
		ConfigDebugLogger()
	case "", "info":
		ConfigInfoLogger()
	default:
		ConfigProductionLogger()
		if lvl, err := myLogger.ParseLevel(level); err == nil {
			myLogger.SetLevel(lvl)
		}
	}
}
