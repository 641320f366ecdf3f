// Simulates the success page's poll loop: bursts of GETs against one order
// id, with an occasional unknown id mixed in.
package main

import (
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	baseURL = "http://localhost:8080/orders/"
	fixedID = "5f0f1f4e-9a2b-4f6e-8f5e-3c1d2e4b6a7c"
)

func main() {
	for {
		var wg sync.WaitGroup
		for range rand.Intn(10) {
			wg.Add(1)
			go func() {
				defer wg.Done()
				doRequest()
			}()
		}
		wg.Wait()
		time.Sleep(20 * time.Millisecond)
	}
}

func doRequest() {
	id := fixedID
	if rand.Intn(5) == 0 {
		id = uuid.New().String()
	}

	url := baseURL + id
	resp, err := http.Get(url)
	if err != nil {
		fmt.Println("request failed:", err)
		return
	}
	fmt.Println("GET", url, "->", resp.Status)
	resp.Body.Close()
}
