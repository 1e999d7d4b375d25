// Package cookiestash keeps session cookies for HTTP clients that don't manage cookies themselves.
//
// Cookies are captured from Set-Cookie headers of login and register responses, merged into a single
// cookie string and saved in a Store under the request URL and the request host. Every later request
// to the same host gets the saved string as its Cookie header.
//
// Basic usage:
//
//	factory, err := cookiestash.NewFactory(cookiestash.DefaultConfig(), store)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client := factory.Client() // built once, safe for concurrent use
//
//	req, err := client.NewRequest(ctx, http.MethodPost, "user/login", body)
//	resp, err := client.Do(req) // Set-Cookie headers of the response are saved
//
//	req, err = client.NewRequest(ctx, http.MethodGet, "lg/coin/userinfo/json", http.NoBody)
//	resp, err = client.Do(req) // Cookie header is attached from the store
//
// Capture and Inject are plain requester middlewares and can be used with any requester.Requester:
//
//	rq := requester.New(http.Client{}, cookiestash.Inject(store, lgr.Default()),
//	    cookiestash.Capture(store, lgr.Default(), "user/login", "user/register"))
package cookiestash
