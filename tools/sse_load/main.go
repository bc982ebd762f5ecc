// Command sse_load opens many concurrent subscriptions to the portfolio
// stream and checks that every client receives well-formed records in
// journal order.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/vadiminshakov/chainguardian/internal/domain"
	"go.uber.org/zap"
)

type counters struct {
	connected   atomic.Int64
	connectErrs atomic.Int64
	streamErrs  atomic.Int64
	events      atomic.Int64
	badPayloads atomic.Int64
	outOfOrder  atomic.Int64
}

// frame is one server-sent event.
type frame struct {
	id    uint64
	event string
	data  string
}

// readFrames parses an event stream and calls fn for every complete frame.
// Comment lines are skipped.
func readFrames(r io.Reader, fn func(frame)) error {
	reader := bufio.NewReader(r)
	var cur frame
	var data []string

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "":
			if cur.event != "" || len(data) > 0 {
				cur.data = strings.Join(data, "\n")
				fn(cur)
			}
			cur, data = frame{}, nil
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "id:"):
			cur.id, _ = strconv.ParseUint(strings.TrimSpace(line[len("id:"):]), 10, 64)
		case strings.HasPrefix(line, "event:"):
			cur.event = strings.TrimSpace(line[len("event:"):])
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(line[len("data:"):], " "))
		}
	}
}

// checkFrame validates a portfolio frame against the last index seen by the
// same client and returns the new last index.
func checkFrame(f frame, last uint64, c *counters) uint64 {
	if f.event != "portfolio" {
		return last
	}
	c.events.Add(1)

	var record domain.PortfolioRecord
	if err := json.Unmarshal([]byte(f.data), &record); err != nil || record.ID == "" {
		c.badPayloads.Add(1)
	}
	if f.id <= last {
		c.outOfOrder.Add(1)
		return last
	}
	return f.id
}

func subscribe(ctx context.Context, client *http.Client, url string, c *counters) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.connectErrs.Add(1)
		return
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(req)
	if err != nil {
		c.connectErrs.Add(1)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.connectErrs.Add(1)
		return
	}
	c.connected.Add(1)

	var last uint64
	err = readFrames(resp.Body, func(f frame) {
		last = checkFrame(f, last, c)
	})
	if err != nil && ctx.Err() == nil {
		c.streamErrs.Add(1)
	}
}

func main() {
	var (
		targetURL    string
		connections  int
		testDuration time.Duration
		rampUp       time.Duration
	)

	flag.StringVar(&targetURL, "url", "http://localhost:8080/api/stream", "portfolio stream URL")
	flag.IntVar(&connections, "conns", 200, "number of concurrent connections to open")
	flag.DurationVar(&testDuration, "dur", 60*time.Second, "test duration (0 for until interrupted)")
	flag.DurationVar(&rampUp, "ramp", time.Second, "spread connection starts across this window")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	if connections <= 0 {
		logger.Fatal("invalid conns", zap.Int("conns", connections))
	}

	logger.Info("starting stream load",
		zap.String("url", targetURL),
		zap.Int("conns", connections),
		zap.Duration("duration", testDuration),
		zap.Duration("ramp", rampUp))

	client := &http.Client{
		Transport: &http.Transport{
			MaxConnsPerHost:     connections + 100,
			MaxIdleConns:        connections + 100,
			MaxIdleConnsPerHost: connections + 100,
			DisableCompression:  true,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if testDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, testDuration)
		defer cancel()
	}

	var (
		c     counters
		wg    sync.WaitGroup
		start = time.Now()
		step  = rampUp / time.Duration(connections)
	)

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logger.Info("status",
					zap.Int64("connected", c.connected.Load()),
					zap.Int64("connect_errs", c.connectErrs.Load()),
					zap.Int64("stream_errs", c.streamErrs.Load()),
					zap.Int64("events", c.events.Load()),
					zap.Duration("elapsed", time.Since(start).Truncate(time.Second)))
			}
		}
	}()

	for i := 0; i < connections && ctx.Err() == nil; i++ {
		if i > 0 && step > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(step):
			}
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			subscribe(ctx, client, targetURL, &c)
		}()
	}
	wg.Wait()

	elapsed := time.Since(start)
	fmt.Printf("done: connected=%s connect_errs=%d stream_errs=%d events=%s bad_payloads=%d out_of_order=%d elapsed=%s events/s=%.2f\n",
		humanize.Comma(c.connected.Load()),
		c.connectErrs.Load(),
		c.streamErrs.Load(),
		humanize.Comma(c.events.Load()),
		c.badPayloads.Load(),
		c.outOfOrder.Load(),
		elapsed.Truncate(time.Millisecond),
		float64(c.events.Load())/elapsed.Seconds(),
	)

	if c.badPayloads.Load() > 0 || c.outOfOrder.Load() > 0 {
		os.Exit(1)
	}
}
