package filter

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "filter")
