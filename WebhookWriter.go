package main

import (
	"bytes"
	"encoding/json"
	"io"
	"io/ioutil"
	"net/http"
	"sync"
	"time"
)

// HookMessage is the format of messages sent to hooks
type HookMessage struct {
	// Run is the simulation run concerned by the message
	Run string `json:"run_id"`
	// Message is the actual message sent
	Message interface{} `json:"message"`
}

// WebhookWriter regularly sends fleet events to a webhook with a POST http request
type WebhookWriter struct {
	sync.Mutex
	baseurl     string
	bearerToken string
	quit        chan struct{}
	done        chan struct{}
	posts       sync.WaitGroup
	headers     map[string]string
	messages    []HookMessage
	client      *http.Client
}

// NewWebhookWriter creates and returns a new WebhookWriter
// it starts a goroutine to send messages every MessageSendInterval ms.
func NewWebhookWriter(url string, headers map[string]string, bearerToken string) *WebhookWriter {
	whw := &WebhookWriter{
		baseurl:     url,
		headers:     headers,
		bearerToken: bearerToken,
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
		client:      &http.Client{Transport: &http.Transport{DisableKeepAlives: true}},
	}

	go func() {
		ticker := time.NewTicker(MessageSendInterval)
		defer ticker.Stop()
		defer close(whw.done)
		for {
			select {
			case <-ticker.C:
				if b := whw.drain(); b != nil {
					whw.posts.Add(1)
					go func() {
						defer whw.posts.Done()
						whw.post(b)
					}()
				}

			case <-whw.quit:
				if b := whw.drain(); b != nil {
					whw.post(b)
				}
				return
			}
		}
	}()

	return whw
}

func (whw *WebhookWriter) Write(message HookMessage) {
	whw.Lock()
	defer whw.Unlock()

	whw.messages = append(whw.messages, message)
	log.Debug("Adding one message to WHW: ", message)
}

// Close sends what's pending, waits for it, and stops the writer
func (whw *WebhookWriter) Close() {
	close(whw.quit)
	<-whw.done
	whw.posts.Wait()
}

// drain marshals and empties the pending messages, nil when there's nothing to send
func (whw *WebhookWriter) drain() []byte {
	whw.Lock()
	defer whw.Unlock()
	if len(whw.messages) == 0 {
		return nil
	}
	log.Debug("Sending WHW messages")

	b, err := json.Marshal(whw.messages)
	whw.messages = nil
	if err != nil {
		log.Error(err)
		return nil
	}
	return b
}

func (whw *WebhookWriter) post(b []byte) {
	req, err := http.NewRequest(http.MethodPost, whw.baseurl, bytes.NewReader(b))
	if err != nil {
		log.Warn("Webhook request error: ", err)
		return
	}

	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Authorization", "Bearer "+whw.bearerToken)
	req.Header.Set("User-Agent", "FlowServer webhook handler")

	for h, v := range whw.headers {
		req.Header.Add(h, v)
	}

	resp, err := whw.client.Do(req)
	if resp != nil {
		defer resp.Body.Close()
		_, err = io.Copy(ioutil.Discard, resp.Body)
		log.Debugf("Webhook replied with status code %d", resp.StatusCode)
	}

	if err != nil {
		log.Warn("Webhook POST error: ", err)
	}
}
