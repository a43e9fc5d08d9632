// moose-detector - detect moose and other warm wildlife in thermal video
//  Copyright (C) 2026, Mooseworks
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// thermal-feeder plays recorded raw thermal footage into the detector's
// frame socket, standing in for the camera adapter daemon during bench
// testing.
package main

import (
	"encoding/binary"
	"io"
	"log"
	"net"
	"time"

	arg "github.com/alexflint/go-arg"
	"github.com/coreos/go-systemd/daemon"

	"github.com/mooseworks/moose-detector/camera"
	"github.com/mooseworks/moose-detector/frames"
)

const (
	frameLogInterval  = 100
	framesPerSdNotify = 50
)

var version = "<not set>"

type Args struct {
	ConfigFile string `arg:"-c,--config" help:"path to configuration file"`
	Loop       bool   `arg:"-l,--loop" help:"replay the file forever"`
	Timestamps bool   `arg:"-t,--timestamps" help:"include timestamps in log output"`
	File       string `arg:"positional,required" help:"raw thermal frame file to feed"`
}

func (Args) Version() string {
	return version
}

func procArgs() Args {
	var args Args
	args.ConfigFile = "/etc/thermal-feeder.yaml"
	arg.MustParse(&args)
	return args
}

func main() {
	err := runMain()
	if err != nil {
		log.Fatal(err)
	}
}

func runMain() error {
	args := procArgs()
	if !args.Timestamps {
		log.SetFlags(0) // Removes default timestamp flag
	}

	log.Printf("running version: %s", version)
	conf, err := ParseConfigFile(args.ConfigFile)
	if err != nil {
		return err
	}
	log.Printf("frame socket: %s", conf.FrameSocket)
	log.Printf("frame size: %dx%d @ %dfps", conf.FrameWidth, conf.FrameHeight, conf.FrameRate)

	log.Print("dialing frame socket")
	conn, err := dialFrameSocket(conf.FrameSocket)
	if err != nil {
		return err
	}
	defer conn.Close()
	conn.SetWriteBuffer(conf.FrameWidth * conf.FrameHeight * 2 * 20)

	for {
		err := feedFile(conn, conf, args.File)
		if err != nil {
			return err
		}
		if !args.Loop {
			return nil
		}
		log.Print("end of file, looping")
	}
}

func feedFile(conn *net.UnixConn, conf *Config, filename string) error {
	source, err := camera.OpenRawFile(filename, conf.FrameWidth, conf.FrameHeight, conf.FrameRate)
	if err != nil {
		return err
	}
	defer source.Close()

	raw := make([]byte, conf.FrameWidth*conf.FrameHeight*2)
	sent := 0

	log.Print("feeding frames")
	for {
		f, err := source.NextFrame(time.Second)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		encodeFrame(f, raw)
		if _, err := conn.Write(raw); err != nil {
			return err
		}

		if sent++; sent%frameLogInterval == 0 {
			log.Printf("%d frames sent", sent)
		}
		if sent%framesPerSdNotify == 0 {
			daemon.SdNotify(false, "WATCHDOG=1")
		}
	}
}

func encodeFrame(f *frames.Frame, raw []byte) {
	for i, v := range f.Pix {
		binary.BigEndian.PutUint16(raw[i*2:], v)
	}
}

func dialFrameSocket(path string) (*net.UnixConn, error) {
	return net.DialUnix("unixpacket", nil, &net.UnixAddr{
		Net:  "unixpacket",
		Name: path,
	})
}
