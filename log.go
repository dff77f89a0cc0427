package rangeassign

import (
	"fmt"
	"log"
	"os"
)

const (
	LOG_ERROR = 1
	LOG_INFO  = 2
	LOG_DEBUG = 3
	LOG_SPAM  = 4
)

var (
	logSpam  *log.Logger
	logDebug *log.Logger
	logInfo  *log.Logger
	logErr   *log.Logger
	maxLvl   int
)

// InitLoggers enables all messages up to logLvl (1 error ... 4 spam).
// Until it is called, Log discards everything.
func InitLoggers(logLvl int) {
	maxLvl = logLvl
	logSpam = log.New(os.Stdout, "SPAM ", log.Ldate|log.Ltime|log.Lshortfile)
	logDebug = log.New(os.Stdout, "DEBUG ", log.Ldate|log.Ltime|log.Lshortfile)
	logInfo = log.New(os.Stdout, "INFO ", log.Ldate|log.Ltime|log.Lshortfile)
	logErr = log.New(os.Stderr, "ERROR ", log.Ldate|log.Ltime|log.Lshortfile)
}

func Log(msgLvl int, printF string, args ...interface{}) {
	if msgLvl > maxLvl {
		return
	}
	var l *log.Logger
	switch msgLvl {
	case LOG_ERROR:
		l = logErr
	case LOG_INFO:
		l = logInfo
	case LOG_DEBUG:
		l = logDebug
	case LOG_SPAM:
		l = logSpam
	}
	if l != nil {
		// skip Log itself so Lshortfile points at the caller
		_ = l.Output(2, fmt.Sprintf(printF, args...))
	}
}
