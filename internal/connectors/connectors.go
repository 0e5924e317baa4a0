package connectors

import "github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal"

// MailConnector fetches unread messages from one mailbox provider.
type MailConnector interface {
	FetchInbox(mailbox string, max int) ([]internal.FetchedMailMessage, error)
}
