package logging

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

var (
	logger       *logrus.Logger
	schedulerLog *logrus.Logger
	monitorLog   *logrus.Logger
)

func init() {
	logger = logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		DisableColors: false,
	})
	logger.SetLevel(logrus.InfoLevel)

	schedulerLog = logrus.New()
	schedulerLog.SetOutput(os.Stdout)
	schedulerLog.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		DisableColors: false,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "time",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "sched_msg",
		},
	})
	schedulerLog.SetLevel(logrus.InfoLevel)

	monitorLog = logrus.New()
	monitorLog.SetOutput(os.Stdout)
	monitorLog.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		DisableColors: false,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "time",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "monitor_msg",
		},
	})
	monitorLog.SetLevel(logrus.InfoLevel)
}

// GetLogger returns the general-purpose process logger.
func GetLogger() *logrus.Logger { return logger }

// GetSchedulerLogger returns the dispatch-scheduler logger ("[SCHED]" in spec §7 terms).
func GetSchedulerLogger() *logrus.Logger { return schedulerLog }

// GetMonitorLogger returns the monitoring-engine logger ("[MONITOR]" in spec §7 terms).
func GetMonitorLogger() *logrus.Logger { return monitorLog }

func SetLogLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logger.SetLevel(lvl)
	return nil
}

func SetSchedulerLogLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	schedulerLog.SetLevel(lvl)
	return nil
}

func SetMonitorLogLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	monitorLog.SetLevel(lvl)
	return nil
}

// Fatal reports a fatal error tagged with its originating component and,
// when applicable, the offending kernel id (spec §7): it writes the line
// "[COMPONENT] kernel=<id>: <err>" to stderr, logs the same error through
// the process logger, then terminates the process. It performs no cleanup
// of its own, and because logrus.Fatal calls os.Exit(1), deferred cleanup
// elsewhere (ring-segment close, socket close) does not run.
func Fatal(component string, kernelID int, err error) {
	if kernelID >= 0 {
		fmt.Fprintf(os.Stderr, "[%s] kernel=%d: %v\n", component, kernelID, err)
	} else {
		fmt.Fprintf(os.Stderr, "[%s] %v\n", component, err)
	}
	fields := logrus.Fields{"component": component}
	if kernelID >= 0 {
		fields["kernel_id"] = kernelID
	}
	logger.WithFields(fields).Fatal(err.Error())
}

// FatalMsg is Fatal for a formatted message instead of a pre-built error.
func FatalMsg(component string, kernelID int, format string, args ...interface{}) {
	Fatal(component, kernelID, fmt.Errorf(format, args...))
}
