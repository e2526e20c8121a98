package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"example.com/fitdec/internal/common"
	"example.com/fitdec/internal/fit"
	"example.com/fitdec/internal/profile"
	"example.com/fitdec/internal/report"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	cmd := os.Args[1]
	switch cmd {
	case "decode":
		decodeCmd(os.Args[2:])
	case "summary":
		summaryCmd(os.Args[2:])
	case "report":
		reportCmd(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Printf(`fitctl %s (built %s) <command> [options]

Commands:
  decode   --in <file.fit> [--dict <profile.json>] [--out <messages.ndjson>] [--summary <summary.json>] [--strict-crc] [--metrics] [--progress]
  summary  --in <file.fit> [--dict <profile.json>] [--out <summary.json>] [--strict-crc]
  report   --in <file.fit> | --from-summary <summary.json> [--dict <profile.json>] [--out <report.pdf>]
`, version, buildDate)
}

func loadRegistry(dictPath string) (fit.Registry, error) {
	path := strings.TrimSpace(dictPath)
	if path == "" {
		return profile.Builtin(), nil
	}
	store, err := profile.EnsureLoaded(path)
	if err != nil {
		return nil, fmt.Errorf("load dictionary %s: %w", path, err)
	}
	return store, nil
}

func decodeCmd(args []string) {
	fs := flag.NewFlagSet("decode", flag.ExitOnError)
	in := fs.String("in", "", "input .fit")
	dictPath := fs.String("dict", "", "profile dictionary JSON file")
	out := fs.String("out", "messages.ndjson", "decoded messages output, - for stdout")
	outSum := fs.String("summary", "", "summary json output")
	strictCRC := fs.Bool("strict-crc", false, "fail on file checksum mismatch")
	metricsFlag := fs.Bool("metrics", false, "print decode throughput metrics")
	progressFlag := fs.Bool("progress", false, "display decode progress updates")
	fs.Parse(args)

	if *in == "" {
		fmt.Println("required: --in")
		os.Exit(1)
	}
	registry, err := loadRegistry(*dictPath)
	if err != nil {
		fmt.Println("dictionary:", err)
		os.Exit(1)
	}

	var metrics *common.Metrics
	if *metricsFlag || *progressFlag {
		metrics = common.NewMetrics()
		if info, err := os.Stat(*in); err == nil {
			metrics.SetTotalBytes(info.Size())
		}
	}

	data, err := os.ReadFile(*in)
	if err != nil {
		fmt.Println("read input:", err)
		os.Exit(1)
	}
	dec, err := fit.NewDecoder(data, fit.Options{Registry: registry, StrictCRC: *strictCRC})
	if err != nil {
		fmt.Println("decode:", err)
		os.Exit(1)
	}
	if metrics != nil {
		dec.SetMetrics(metrics)
		metrics.Start()
	}
	var stopProgress func()
	if metrics != nil && *progressFlag {
		stopProgress = common.StartProgressPrinter(os.Stderr, metrics, 500*time.Millisecond)
	}

	var w io.Writer = os.Stdout
	if *out != "-" {
		f, err := os.Create(*out)
		if err != nil {
			fmt.Println("create output:", err)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	decodeErr := func() error {
		for {
			msg, err := dec.Next()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			if err := enc.Encode(msg); err != nil {
				return fmt.Errorf("write message: %w", err)
			}
		}
	}()
	if stopProgress != nil {
		stopProgress()
	}
	if metrics != nil {
		metrics.Stop()
	}
	if decodeErr != nil {
		fmt.Println("decode:", decodeErr)
		os.Exit(1)
	}

	sum := dec.Summary()
	if *outSum != "" {
		if err := report.SaveSummaryJSON(sum, *outSum); err != nil {
			fmt.Println("write summary:", err)
			os.Exit(1)
		}
	}
	fmt.Printf("records=%d definitions=%d messages=%d warnings=%d crcValid=%v\n",
		sum.Records, sum.Definitions, sum.Messages, len(sum.Warnings), sum.CRCValid)
	if metrics != nil && *metricsFlag {
		snap := metrics.Snapshot()
		throughputBps := snap.ThroughputBytesPerSecond()
		mbPerSec := throughputBps / 1_000_000
		fmt.Printf("Metrics: duration=%s records=%d messages=%d processed=%s throughput=%.2f MB/s\n",
			snap.Duration.Round(10*time.Millisecond),
			snap.Records,
			snap.Messages,
			common.FormatBytes(snap.Bytes),
			mbPerSec,
		)
	}
}

func summaryCmd(args []string) {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	in := fs.String("in", "", "input .fit")
	dictPath := fs.String("dict", "", "profile dictionary JSON file")
	out := fs.String("out", "-", "summary output, - for stdout")
	strictCRC := fs.Bool("strict-crc", false, "fail on file checksum mismatch")
	fs.Parse(args)

	if *in == "" {
		fmt.Println("required: --in")
		os.Exit(1)
	}
	registry, err := loadRegistry(*dictPath)
	if err != nil {
		fmt.Println("dictionary:", err)
		os.Exit(1)
	}
	_, sum, err := fit.DecodeFile(*in, fit.Options{Registry: registry, StrictCRC: *strictCRC})
	if err != nil {
		fmt.Println("decode:", err)
		os.Exit(1)
	}
	if *out == "-" {
		b, err := json.MarshalIndent(sum, "", "  ")
		if err != nil {
			fmt.Println("marshal summary:", err)
			os.Exit(1)
		}
		fmt.Println(string(b))
		return
	}
	if err := report.SaveSummaryJSON(sum, *out); err != nil {
		fmt.Println("write summary:", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s\n", *out)
}

func reportCmd(args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	in := fs.String("in", "", "input .fit")
	fromSummary := fs.String("from-summary", "", "render from a saved summary json instead of decoding")
	dictPath := fs.String("dict", "", "profile dictionary JSON file")
	out := fs.String("out", "decode_report.pdf", "report PDF output")
	strictCRC := fs.Bool("strict-crc", false, "fail on file checksum mismatch")
	fs.Parse(args)

	if *in == "" && *fromSummary == "" {
		fmt.Println("required: --in or --from-summary")
		os.Exit(1)
	}
	if *in != "" && *fromSummary != "" {
		fmt.Println("--in and --from-summary cannot be used together")
		os.Exit(1)
	}

	var sum fit.Summary
	var hash string
	if *fromSummary != "" {
		loaded, err := report.LoadSummaryJSON(*fromSummary)
		if err != nil {
			fmt.Println("load summary:", err)
			os.Exit(1)
		}
		sum = loaded
	} else {
		registry, err := loadRegistry(*dictPath)
		if err != nil {
			fmt.Println("dictionary:", err)
			os.Exit(1)
		}
		_, decoded, err := fit.DecodeFile(*in, fit.Options{Registry: registry, StrictCRC: *strictCRC})
		if err != nil {
			fmt.Println("decode:", err)
			os.Exit(1)
		}
		sum = decoded
		if h, _, err := common.Sha256OfFile(*in); err == nil {
			hash = h
		}
	}
	if err := report.SaveSummaryPDF(sum, hash, *out); err != nil {
		fmt.Println("write report:", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s\n", *out)
}
