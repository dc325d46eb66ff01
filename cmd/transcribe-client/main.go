package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/JaymarM28/kari-transcriptor/domain"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "transcription server URL")
	useWebSocket := flag.Bool("ws", false, "follow progress over websocket instead of SSE")
	existing := flag.String("filename", "", "stream an already uploaded file instead of uploading")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <audio file>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *existing == "" && flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c, err := newClient(*serverURL)
	if err != nil {
		log.Fatal(err)
	}

	filename := *existing
	if filename == "" {
		filename, err = c.upload(ctx, flag.Arg(0))
		if err != nil {
			log.Fatalf("Upload failed: %v", err)
		}
		log.Printf("Uploaded as %s", filename)
	}

	var final domain.ProgressEvent
	show := func(event domain.ProgressEvent) {
		final = event
		log.Printf("[%3d%%] %-14s %s", event.Progress, event.Status, event.Message)
		if event.PartialText != "" {
			log.Printf("       %s", event.PartialText)
		}
	}

	if *useWebSocket {
		err = c.followWebSocket(ctx, filename, show)
	} else {
		err = c.followSSE(ctx, filename, show)
	}
	if err != nil {
		log.Fatalf("Stream failed: %v", err)
	}

	if !final.IsTerminal() {
		log.Fatal("Stream closed before the transcription finished")
	}
	if final.Status != domain.StatusCompleted {
		if final.Trace != "" {
			log.Print(final.Trace)
		}
		log.Fatalf("Transcription failed: %s", final.Message)
	}
	fmt.Println(final.FullText)
}
