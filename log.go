package xquery

import (
	"os"

	"github.com/sirupsen/logrus"
)

const (
	// LocksLogField is the logrus field holding the lock sets of a query.
	LocksLogField = "locks"
	// ResultTypeLogField is the logrus field holding the static type of the
	// result of a query.
	ResultTypeLogField = "result_type"
)

func newLogger(c LogConfig) (*logrus.Logger, error) {
	l := logrus.New()
	l.Out = os.Stderr

	if c.Level != "" {
		lvl, err := logrus.ParseLevel(c.Level)
		if err != nil {
			return nil, ErrInvalidConfig.New(err)
		}
		l.Level = lvl
	}

	switch c.Format {
	case "", "text":
		l.Formatter = &logrus.TextFormatter{}
	case "json":
		l.Formatter = &logrus.JSONFormatter{}
	default:
		return nil, ErrInvalidConfig.New("unknown log format " + c.Format)
	}
	return l, nil
}
