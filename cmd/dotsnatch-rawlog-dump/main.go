package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"

	"dotsnatch-go/internal/output"
)

func main() {
	var (
		path    = flag.String("path", "", "Path to an event log .bin file")
		limit   = flag.Int("limit", 0, "Number of records to dump (0 dumps all)")
		generic = flag.Bool("generic", false, "Print records as generic CBOR instead of detection events")
	)
	flag.Parse()

	if *path == "" {
		log.Fatal("path is required")
	}

	f, err := os.Open(*path)
	if err != nil {
		log.Fatalf("open rawlog: %v", err)
	}
	defer f.Close()

	reader, err := output.NewRawLogReader(f)
	if err != nil {
		log.Fatalf("%v", err)
	}

	for count := 0; *limit <= 0 || count < *limit; count++ {
		rec, err := reader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				log.Printf("record %d: truncated, stopping", count)
				return
			}
			log.Fatalf("read record: %v", err)
		}

		value, err := decodeRecord(rec.Payload, *generic)
		if err != nil {
			log.Printf("record %d: CBOR decode error: %v", count, err)
			continue
		}
		pretty, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			log.Printf("record %d: JSON encode error: %v", count, err)
			continue
		}

		log.Printf("record %d timestamp=%s size=%d", count, rec.Time.Format(time.RFC3339Nano), len(rec.Payload))
		fmt.Println(string(pretty))
	}
}

func decodeRecord(payload []byte, generic bool) (any, error) {
	if !generic {
		return output.DecodeEvent(payload)
	}
	var decoded any
	if err := cbor.Unmarshal(payload, &decoded); err != nil {
		return nil, err
	}
	return output.NormalizeJSONValue(decoded), nil
}
