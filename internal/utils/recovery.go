package utils

import (
	log "github.com/sirupsen/logrus"
)

// RunWithRecovery runs fn in a goroutine. A panic in fn is logged and swallowed
// so it never takes the host process down.
func RunWithRecovery(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.WithField("prefix", "RunWithRecovery").Errorf("recovered from panic: %v", r)
			}
		}()
		fn()
	}()
}
