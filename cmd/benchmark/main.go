package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/punchamoorthee/ledgergate/internal/hashchain"
	"github.com/punchamoorthee/ledgergate/internal/models"
	"github.com/punchamoorthee/ledgergate/internal/opclient"
)

// Config holds the benchmark settings
var (
	targetURL   string
	concurrency int
	duration    time.Duration
	workload    string
	accounts    int
	seed        string
	chainLength int
	digestName  string
)

// Metrics
var (
	totalRequests uint64
	staged201     uint64
	approved200   uint64
	fail401       uint64 // Lost the race for the tail
	failOther     uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "uniform", "Workload type: uniform | hotspot | approve")
	flag.IntVar(&accounts, "accounts", 1000, "Seeded accounts to pick phones from")
	flag.StringVar(&seed, "seed", "bench-seed", "Hash chain seed for the approve workload")
	flag.IntVar(&chainLength, "chain", 100000, "Hash chain length for the approve workload")
	flag.StringVar(&digestName, "digest", "md5", "Digest the server verifies with: md5 | sha256")
}

func main() {
	flag.Parse()
	log.Printf("Starting Benchmark: %s | Workers: %d | Duration: %s", workload, concurrency, duration)

	var chain *hashchain.Chain
	if workload == "approve" {
		digest, err := hashchain.ByName(digestName)
		if err != nil {
			log.Fatal(err)
		}
		if chain, err = hashchain.NewChain(seed, chainLength, digest); err != nil {
			log.Fatal(err)
		}
	}

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		if chain != nil {
			go approver(&wg, start, chain)
		} else {
			go stager(&wg, start)
		}
	}

	wg.Wait()
	printResults(time.Since(start))
}

func phone(i int) string {
	return fmt.Sprintf("+1555%07d", i)
}

func stage(client *http.Client) (int64, bool) {
	from, to := generateAccounts()
	body, _ := json.Marshal(models.TransferRequest{
		SenderPhone:   phone(from),
		ReceiverPhone: phone(to),
		Amount:        100,
		Comment:       "bench",
	})

	req, _ := http.NewRequest("POST", targetURL+"/api/v1/transfers", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		atomic.AddUint64(&failOther, 1)
		return 0, false
	}
	defer resp.Body.Close()

	atomic.AddUint64(&totalRequests, 1)
	if resp.StatusCode != http.StatusCreated {
		atomic.AddUint64(&failOther, 1)
		return 0, false
	}
	atomic.AddUint64(&staged201, 1)

	var out models.StagedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, false
	}
	return out.PendingID, true
}

func stager(wg *sync.WaitGroup, start time.Time) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}

	for time.Since(start) < duration {
		stage(client)
	}
}

// approver stages one transfer and approves it, retrying with a fresh token
// whenever another worker advanced the tail first.
func approver(wg *sync.WaitGroup, start time.Time, chain *hashchain.Chain) {
	defer wg.Done()
	httpClient := &http.Client{Timeout: 5 * time.Second}
	op := opclient.New(targetURL, httpClient)
	ctx := context.Background()

	for time.Since(start) < duration {
		id, ok := stage(httpClient)
		if !ok {
			continue
		}

		for time.Since(start) < duration {
			tail, _, err := op.Tail(ctx)
			if err != nil {
				atomic.AddUint64(&failOther, 1)
				break
			}
			token, err := chain.Next(tail)
			if err != nil {
				log.Fatalf("chain: %v", err)
			}

			_, err = op.Approve(ctx, id, token)
			atomic.AddUint64(&totalRequests, 1)
			if err == nil {
				atomic.AddUint64(&approved200, 1)
				break
			}
			if errors.Is(err, opclient.ErrUnauthenticated) {
				atomic.AddUint64(&fail401, 1)
				continue
			}
			atomic.AddUint64(&failOther, 1)
			break
		}
	}
}

func generateAccounts() (int, int) {
	if workload == "hotspot" {
		// Hotspot: 90% of traffic goes between the first two accounts
		if rand.Float32() < 0.90 {
			if rand.Float32() < 0.5 {
				return 0, 1
			}
			return 1, 0
		}
	}

	// Uniform Random
	a := rand.Intn(accounts)
	b := rand.Intn(accounts)
	for a == b {
		b = rand.Intn(accounts)
	}
	return a, b
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	s201 := atomic.LoadUint64(&staged201)
	s200 := atomic.LoadUint64(&approved200)
	f401 := atomic.LoadUint64(&fail401)
	fErr := atomic.LoadUint64(&failOther)

	tps := float64(total) / d.Seconds()
	var retryRate float64
	if total > 0 {
		retryRate = float64(f401) / float64(total) * 100
	}

	results := map[string]interface{}{
		"workload":       workload,
		"duration_sec":   d.Seconds(),
		"total_requests": total,
		"throughput_tps": tps,
		"staged":         s201,
		"approved":       s200,
		"tail_races":     f401,
		"retry_rate_pct": retryRate,
		"errors":         fErr,
	}

	// Print JSON for the python plotter to consume
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	// Also save to file
	filename := fmt.Sprintf("results_%s.json", workload)
	file, err := os.Create(filename)
	if err != nil {
		log.Printf("save results: %v", err)
		return
	}
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
