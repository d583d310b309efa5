// Package discordblob is the real blob.Adapter: it stores one blob as one
// attachment on one message of a single fixed channel of a chat service,
// using a bot session. Grounded on rclone's backend/discord (chunked
// attachment upload via ChannelMessageSendComplex, delete via
// ChannelMessageDelete, history paging via ChannelMessages) and on
// ZoniBoy00/DiscordVault's simpler single-channel attachment store.
package discordblob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"github.com/ddrive-io/ddrive/pkg/blob"
	"github.com/ddrive-io/ddrive/pkg/errtypes"
	"github.com/ddrive-io/ddrive/pkg/log"
)

var logger = log.New("blob/discordblob")

// DiscordMaxAttachmentSize is the per-attachment byte ceiling on a
// non-boosted guild.
const DiscordMaxAttachmentSize int64 = 8 * 1024 * 1024

// Adapter stores blobs as attachments on ChannelID using an authenticated
// bot Session.
type Adapter struct {
	Session   *discordgo.Session
	ChannelID string
}

// New opens a bot session with token and returns an Adapter bound to
// channelID. The caller owns the session's lifecycle beyond this call;
// Close should be deferred by the process wiring this adapter (cmd/ddrived).
func New(token, channelID string) (*Adapter, error) {
	if token == "" {
		return nil, errtypes.ConfigMissing("blob substrate auth token")
	}
	if channelID == "" {
		return nil, errtypes.ConfigMissing("blob substrate channel id")
	}
	sess, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, errtypes.BlobNet{Cause: err}
	}
	return &Adapter{Session: sess, ChannelID: channelID}, nil
}

// Close tears down the underlying session.
func (a *Adapter) Close() error {
	return a.Session.Close()
}

// MaxAttachmentSize implements blob.Adapter.
func (a *Adapter) MaxAttachmentSize() int64 { return DiscordMaxAttachmentSize }

// Put implements blob.Adapter.
func (a *Adapter) Put(ctx context.Context, name string, data []byte) (blob.Ref, error) {
	if int64(len(data)) > a.MaxAttachmentSize() {
		return blob.Ref{}, errtypes.BlobTooLarge{Size: int64(len(data)), Max: a.MaxAttachmentSize()}
	}

	msg, err := a.Session.ChannelMessageSendComplex(a.ChannelID, &discordgo.MessageSend{
		Files: []*discordgo.File{{
			Name:   name,
			Reader: bytes.NewReader(data),
		}},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return blob.Ref{}, classify(err)
	}

	var url string
	if len(msg.Attachments) > 0 {
		url = msg.Attachments[0].URL
	}
	return blob.Ref{MessageID: msg.ID, ChannelID: a.ChannelID, AttachmentURL: url}, nil
}

// Get implements blob.Adapter. It re-fetches the message to obtain a live
// CDN URL (attachment URLs expire) rather than trusting ref.AttachmentURL.
func (a *Adapter) Get(ctx context.Context, ref blob.Ref) ([]byte, error) {
	msg, err := a.Session.ChannelMessage(ref.ChannelID, ref.MessageID, discordgo.WithContext(ctx))
	if err != nil {
		if isNotFound(err) {
			return nil, errtypes.BlobNotFound(ref.MessageID)
		}
		return nil, classify(err)
	}
	if len(msg.Attachments) == 0 {
		return nil, errtypes.BlobNotFound(ref.MessageID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, msg.Attachments[0].URL, nil)
	if err != nil {
		return nil, errtypes.BlobNet{Cause: err}
	}
	resp, err := a.Session.Client.Do(req)
	if err != nil {
		return nil, errtypes.BlobNet{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errtypes.BlobNotFound(ref.MessageID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errtypes.BlobNet{Cause: fmt.Errorf("attachment fetch: unexpected status %d", resp.StatusCode)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errtypes.BlobNet{Cause: err}
	}
	return data, nil
}

// Delete implements blob.Adapter. A not-found response is treated as
// success, matching a delete operation's idempotency requirement. A ref
// with no ChannelID (the reconciler's orphan sweep only knows message ids)
// targets the adapter's own ChannelID.
func (a *Adapter) Delete(ctx context.Context, ref blob.Ref) error {
	channelID := ref.ChannelID
	if channelID == "" {
		channelID = a.ChannelID
	}
	err := a.Session.ChannelMessageDelete(channelID, ref.MessageID, discordgo.WithContext(ctx))
	if err == nil {
		return nil
	}
	if isNotFound(err) {
		logger.Printf(ctx, "delete %s: already gone, treating as success", ref.MessageID)
		return nil
	}
	return classify(err)
}

// ListMessageIDs implements blob.Adapter, paging ChannelID's message
// history 100-at-a-time (the substrate's page ceiling), oldest page last.
func (a *Adapter) ListMessageIDs(ctx context.Context, pageSize int, yield func(ids []string) bool) error {
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 100
	}
	beforeID := ""
	for {
		messages, err := a.Session.ChannelMessages(a.ChannelID, pageSize, beforeID, "", "", discordgo.WithContext(ctx))
		if err != nil {
			return classify(err)
		}
		if len(messages) == 0 {
			return nil
		}
		ids := make([]string, 0, len(messages))
		for _, m := range messages {
			ids = append(ids, m.ID)
			beforeID = m.ID
		}
		if !yield(ids) {
			return nil
		}
		if len(messages) < pageSize {
			return nil
		}
	}
}

func isNotFound(err error) bool {
	var rest *discordgo.RESTError
	if asRESTError(err, &rest) {
		return rest.Response != nil && rest.Response.StatusCode == http.StatusNotFound
	}
	return false
}

// classify turns a discordgo error into the blob-adapter error taxonomy:
// rate-limit responses carry retry-after, everything else network-shaped
// is BlobNet.
func classify(err error) error {
	if rl, ok := err.(*discordgo.RateLimitError); ok && rl.RateLimit != nil {
		return errtypes.BlobRateLimit{RetryAfterSeconds: rl.RateLimit.RetryAfter}
	}
	var rest *discordgo.RESTError
	if asRESTError(err, &rest) {
		if rest.Response != nil && rest.Response.StatusCode == http.StatusTooManyRequests {
			return errtypes.BlobRateLimit{RetryAfterSeconds: 1}
		}
	}
	return errtypes.BlobNet{Cause: err}
}

func asRESTError(err error, out **discordgo.RESTError) bool {
	if r, ok := err.(*discordgo.RESTError); ok {
		*out = r
		return true
	}
	return false
}
