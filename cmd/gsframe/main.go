// Command gsframe packs channel values into a TLC5940 grayscale frame, or
// unpacks a frame back into values.
//
//	gsframe 4095 0 2048            # prints the hex frame for 16 channels
//	gsframe -bits 8 255 128        # scales 8-bit input first
//	gsframe -decode fff000800...   # prints one value per channel
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/tlc5940/internal/tlc5940"
)

func main() {
	channels := flag.Int("channels", tlc5940.DefaultChannels, "channel count")
	bits := flag.Int("bits", tlc5940.GSBits, "bit width of the input values")
	decode := flag.String("decode", "", "hex frame to decode")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	if *channels <= 0 {
		log.Fatal().Int("channels", *channels).Msg("channel count must be > 0")
	}

	if *decode != "" {
		frame, err := hex.DecodeString(strings.TrimPrefix(*decode, "0x"))
		if err != nil {
			log.Fatal().Err(err).Msg("bad hex")
		}
		snap, err := tlc5940.Decode(frame, *channels)
		if err != nil {
			log.Fatal().Err(err).Msg("decode")
		}
		for i, v := range snap {
			fmt.Printf("%d\t%d\n", i, v)
		}
		return
	}

	if flag.NArg() > *channels {
		log.Fatal().Int("values", flag.NArg()).Int("channels", *channels).Msg("more values than channels")
	}
	snap := make(tlc5940.Snapshot, *channels)
	for i, arg := range flag.Args() {
		v, err := strconv.ParseInt(arg, 0, 32)
		if err != nil {
			log.Fatal().Err(err).Str("value", arg).Msg("bad value")
		}
		snap[i] = tlc5940.Scale(int(v), *bits)
	}
	frame := make([]byte, tlc5940.FrameSize(*channels))
	if err := tlc5940.Encode(frame, snap); err != nil {
		log.Fatal().Err(err).Msg("encode")
	}
	fmt.Println(hex.EncodeToString(frame))
}
