package flex

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "flex")
