// Package cmds implements the wolff subcommands.
package cmds

import (
	"errors"
	"fmt"
	"io"
	"wolff/internal/config"

	log "github.com/sirupsen/logrus"
)

const usage = `usage: wolff <command> [flags]

commands:
  gateway                      serve TCP frames, updates and the admin endpoint
  mqtt-gateway                 serve frames from the MQTT broker, updates and the admin endpoint
  node-proxy                   relay local TCP frames over MQTT to the gateway
  client put <file.yml>        onboard a client
  client get <client_id> <service>
`

// Run dispatches args to a subcommand and returns the process exit code.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(stdout, usage)
		return 0
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	if err := SetupLogging(cfg.Log); err != nil {
		fmt.Fprintf(stderr, "logging: %v\n", err)
		return 1
	}

	switch args[0] {
	case "gateway":
		err = runGateway(cfg, args[1:], stderr)
	case "mqtt-gateway":
		err = runMQTTGateway(cfg, args[1:], stderr)
	case "node-proxy":
		err = runNodeProxy(cfg, args[1:], stderr)
	case "client":
		err = runClient(cfg, args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n", args[0])
		fmt.Fprint(stderr, usage)
		return 2
	}
	if err != nil {
		if errors.Is(err, errUsage) {
			return 2
		}
		log.WithError(err).Errorf("%s failed", args[0])
		return 1
	}
	return 0
}
