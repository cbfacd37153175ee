package raptor

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "raptor")
