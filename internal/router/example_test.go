package router

import (
	"fmt"
	"net/http"
	"strings"
)

func ExampleRouter_GetPing() {
	env := setupTestRouter(nil)
	defer env.server.Close()

	resp, err := http.Get(env.server.URL + "/ping")
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()

	fmt.Println("Status Code:", resp.StatusCode)

	// Output:
	// Status Code: 200
}

func ExampleRouter_PostPublicCreate() {
	env := setupTestRouter(nil)
	defer env.server.Close()

	resp, err := http.Post(
		env.server.URL+"/public/create",
		"application/json",
		strings.NewReader(`{"userName":"alice","password":"p1"}`),
	)
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()

	fmt.Println("Status Code:", resp.StatusCode)
	fmt.Println("Content-Length:", resp.ContentLength)

	// Output:
	// Status Code: 200
	// Content-Length: 0
}

func ExampleRouter_DeleteUser() {
	env := setupTestRouter(nil)
	defer env.server.Close()

	created, err := http.Post(
		env.server.URL+"/public/create",
		"application/json",
		strings.NewReader(`{"userName":"alice","password":"p1"}`),
	)
	if err != nil {
		panic(err)
	}
	created.Body.Close()

	for i := 0; i < 2; i++ {
		req, err := http.NewRequest(http.MethodDelete, env.server.URL+"/user", nil)
		if err != nil {
			panic(err)
		}
		req.SetBasicAuth("alice", "p1")

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			panic(err)
		}
		resp.Body.Close()

		fmt.Println("Status Code:", resp.StatusCode)
	}

	// Output:
	// Status Code: 204
	// Status Code: 401
}
