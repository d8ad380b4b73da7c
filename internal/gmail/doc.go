// Package gmail provides the mailbox side of inboxforward on top of the Gmail API.
//
// The client lists unread messages that lack the processed label, fetches
// full messages and out-of-line attachment bodies, and labels messages once
// they have been handled. Every API call is traced, counted, and guarded by
// a circuit breaker so a failing API stops being hammered by the poll loop.
//
// Authentication is supplied by the caller through option.ClientOption,
// normally an OAuth2 HTTP client from the google package.
//
// Example usage:
//
//	httpClient, err := google.NewHTTPClient(ctx, creds)
//	if err != nil {
//	    return err
//	}
//	client, err := gmail.NewClient(ctx, gmail.Config{}, option.WithHTTPClient(httpClient))
//	if err != nil {
//	    return err
//	}
//	ids, err := client.ListMessageIDs(ctx, gmail.UnprocessedQuery("forwarded"))
package gmail
