package config

import (
	"flag"
	"fmt"
)

const HelpMessage = `
  triphail [-mode=trip-core|notify-worker] [-config-path=config.yaml]

  -mode            which process to run: trip-core (dispatch + HTTP/socket
                    API) or notify-worker (dispatcher notification fan-out)
  -config-path     path to a YAML file whose keys seed the environment
`

func PrintHelp() {
	if HelpMessage != "" {
		fmt.Printf("%s", HelpMessage)
	} else {
		flag.Usage()
	}
}
