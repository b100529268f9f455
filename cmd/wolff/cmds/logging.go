package cmds

import (
	"fmt"
	"os"
	"strings"
	"wolff/internal/config"

	log "github.com/sirupsen/logrus"
)

// SetupLogging applies WOLFF_LOG_LEVEL and WOLFF_LOG_FORMAT (text or json) to the standard
// logger.
func SetupLogging(cfg config.LogConfig) error {
	level, err := log.ParseLevel(strings.TrimSpace(cfg.Level))
	if err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unknown log format %q", cfg.Format)
	}
	log.SetLevel(level)
	log.SetOutput(os.Stderr)
	return nil
}
