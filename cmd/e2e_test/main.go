package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

const baseURL = "http://localhost:8080"

func main() {
	// Wait for server to start
	time.Sleep(2 * time.Second)

	// 1. Health Check
	call("GET", "/health", "", nil, 200)

	// 2. Sign up a fresh account
	email := fmt.Sprintf("e2e-%d@kenfolio.local", time.Now().UnixNano())
	token := authenticate("/auth/signup", email, 201)
	fmt.Printf("Signed up %s\n", email)

	// 3. Record transactions
	call("POST", "/transactions", token, map[string]interface{}{"symbol": "bitcoin", "quantity": "2", "price": "10000", "type": "buy"}, 201)
	call("POST", "/transactions", token, map[string]interface{}{"symbol": "bitcoin", "quantity": "1", "price": "12000", "type": "buy"}, 201)
	call("POST", "/transactions", token, map[string]interface{}{"symbol": "bitcoin", "quantity": "1", "price": "15000", "type": "sell"}, 201)

	// 4. Rejected input
	call("POST", "/transactions", token, map[string]interface{}{"symbol": "bitcoin", "quantity": "0", "price": "1", "type": "buy"}, 400)

	// 5. Edit and delete
	call("PUT", "/transactions/0", token, map[string]interface{}{"quantity": "0.5", "price": "15000"}, 200)
	call("DELETE", "/transactions/2", token, nil, 200)
	call("DELETE", "/transactions/99", token, nil, 404)

	// 6. Portfolio and log
	call("GET", "/portfolio", token, nil, 200)
	call("GET", "/transactions", token, nil, 200)

	// 7. Sign out, sign back in, data is still there
	call("POST", "/auth/signout", token, nil, 200)
	call("GET", "/transactions", token, nil, 401)
	token = authenticate("/auth/signin", email, 200)
	call("GET", "/transactions", token, nil, 200)

	// 8. Reset needs confirmation
	call("POST", "/reset", token, map[string]interface{}{"confirm": false}, 400)
	call("POST", "/reset", token, map[string]interface{}{"confirm": true}, 200)

	fmt.Println("ALL TESTS PASSED")
}

func authenticate(path, email string, expectedStatus int) string {
	body := call("POST", path, "", map[string]string{"email": email, "password": "e2e-secret"}, expectedStatus)
	var res map[string]string
	if err := json.Unmarshal(body, &res); err != nil {
		log.Fatalf("decode auth response: %v", err)
	}
	return res["token"]
}

func call(method, path, token string, body interface{}, expectedStatus int) []byte {
	fmt.Printf("Testing %s %s...\n", method, path)
	var bodyReader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, _ := http.NewRequest(method, baseURL+path, bodyReader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != expectedStatus {
		log.Fatalf("Expected status %d, got %d. Body: %s", expectedStatus, resp.StatusCode, string(respBody))
	}
	fmt.Printf("Response: %s\n", string(respBody))
	return respBody
}
