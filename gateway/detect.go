package gateway

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// vendorSignatures maps USB vendor IDs to the bridge chips and boards the
// sensor firmware ships on. Auto-detection selects the first enumerated port
// whose vendor matches.
var vendorSignatures = map[string]string{
	"2341": "Arduino",
	"1A86": "CH340",
	"0403": "FTDI",
	"10C4": "CP210x",
}

// detectEndpoint enumerates serial endpoints and returns the first one whose
// USB descriptor matches a known vendor signature.
func detectEndpoint() (string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", &LinkError{message: "cannot enumerate serial ports", wrapped: err}
	}

	for _, p := range ports {
		if !p.IsUSB {
			continue
		}
		if _, ok := vendorSignatures[strings.ToUpper(p.VID)]; ok {
			return p.Name, nil
		}
	}

	return "", &LinkError{message: "no device with a known vendor signature found"}
}

// serialDialer opens the physical link, auto-detecting the endpoint when
// enabled and falling back to the configured one.
func serialDialer(opts Options) Dialer {
	return func(ctx context.Context) (io.ReadWriteCloser, error) {
		endpoint := opts.Endpoint
		if opts.AutoDetect {
			if detected, err := detectEndpoint(); err == nil {
				endpoint = detected
			}
		}
		if endpoint == "" {
			return nil, &LinkError{message: "no serial endpoint configured or detected"}
		}

		port, err := serial.Open(endpoint, &serial.Mode{BaudRate: opts.BaudRate})
		if err != nil {
			return nil, &LinkError{
				message: fmt.Sprintf("cannot open serial endpoint %s", endpoint),
				wrapped: err,
			}
		}
		return port, nil
	}
}
