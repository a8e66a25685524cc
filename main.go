// HACKRFCAP - An interrupt-driven raw I/Q capture tool for SDR devices.
// Copyright (C) 2019 Douglas Hall
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"flag"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/bemasher/hackrfcap/sdr"
)

var (
	buildTag   = "dev"     // v#.#.#
	buildDate  = "unknown" // date -u '+%Y-%m-%d'
	commitHash = "unknown" // git rev-parse HEAD
)

func init() {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000000",
	})
}

func sdrConfig() sdr.Config {
	return sdr.Config{
		Backend:    *backend,
		Serial:     *serial,
		ServerAddr: *serverAddr,
	}
}

func main() {
	RegisterFlags()
	EnvOverride()
	flag.Parse()

	if *version {
		fmt.Println("Build Tag: ", buildTag)
		fmt.Println("Build Date:", buildDate)
		fmt.Println("Commit:    ", commitHash)
		os.Exit(0)
	}

	if *metricsAddr != "" {
		serveDebug(*metricsAddr)
	}

	session, err := NewSession(sessionConfig())
	if err != nil {
		log.Fatal(err)
	}
	defer session.Close()

	if err := session.Start(); err != nil {
		session.Close()
		log.Fatal(err)
	}

	session.Wait()
}
