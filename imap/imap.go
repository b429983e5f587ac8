package imap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"

	imapv2 "github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-sasl"

	"github.com/dhcgn/pfc-export/model"
	"github.com/dhcgn/pfc-export/runner"
	"github.com/dhcgn/pfc-export/state"
	"github.com/dhcgn/pfc-export/stats"
)

var (
	ErrMissingMessageID = errors.New("message id is empty")
)

type Options struct {
	Host               string
	Port               int
	Username           string
	Password           string
	UseTLS             bool
	InsecureSkipVerify bool
	// AuthPlain authenticates with SASL PLAIN instead of the LOGIN command.
	AuthPlain    bool
	TargetFolder string
	// KeepFolders appends each message below the target folder, in the
	// mailbox named after its cabinet folder path.
	KeepFolders bool
	DryRun      bool
}

type Uploader struct {
	opts    Options
	runner  *runner.Runner
	tracker state.Tracker
	uploads <-chan model.Message
	logger  *slog.Logger

	// ensured holds the mailboxes already created or found this session.
	ensured map[string]bool
	// delim is the server hierarchy delimiter, zero until known.
	delim rune
}

const defaultDelim = '/'

func NewUploader(opts Options, r *runner.Runner, logger *slog.Logger) (*Uploader, error) {
	if opts.Host == "" {
		return nil, fmt.Errorf("imap host is empty")
	}
	if opts.Port <= 0 {
		return nil, fmt.Errorf("imap port must be positive")
	}
	tracker := r.Tracker()
	if tracker == nil {
		return nil, fmt.Errorf("tracker must not be nil")
	}
	uploader := &Uploader{
		opts:    opts,
		runner:  r,
		tracker: tracker,
		uploads: r.Uploads(),
		logger:  logger,
		ensured: make(map[string]bool),
	}
	r.AddStage("imap", uploader.run)
	return uploader, nil
}

func (u *Uploader) run(ctx context.Context) error {
	var (
		client  *imapclient.Client
		cleanup func()
	)
	defer func() {
		if cleanup != nil {
			cleanup()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-u.uploads:
			if !ok {
				return nil
			}
			if msg.ID == "" {
				u.runner.EmitEvent(stats.Event{Stage: stats.StageIMAP, Type: stats.EventTypeError, Err: ErrMissingMessageID})
				continue
			}
			if msg.Hash == "" {
				err := fmt.Errorf("message %s missing hash", msg.ID)
				u.runner.EmitEvent(stats.Event{Stage: stats.StageIMAP, Type: stats.EventTypeError, MessageID: msg.ID, Err: err})
				return err
			}

			if u.opts.DryRun {
				if err := u.tracker.MarkProcessed(msg.Hash, msg.ID); err != nil {
					u.runner.EmitEvent(stats.Event{Stage: stats.StageIMAP, Type: stats.EventTypeError, MessageID: msg.ID, Err: err})
					return err
				}
				u.runner.EmitEvent(stats.Event{Stage: stats.StageIMAP, Type: stats.EventTypeDryRunUpload, MessageID: msg.ID})
				if u.logger != nil {
					u.logger.Debug("dry-run upload", "messageID", msg.ID, "target", u.mailboxFor(msg), "hash", msg.Hash)
				}
				continue
			}

			if client == nil {
				var err error
				client, cleanup, err = u.dial(ctx)
				if err != nil {
					u.runner.EmitEvent(stats.Event{Stage: stats.StageIMAP, Type: stats.EventTypeError, MessageID: msg.ID, Err: err})
					return err
				}
			}

			if err := u.appendMessage(client, msg); err != nil {
				err = fmt.Errorf("upload message %s: %w", msg.ID, err)
				u.runner.EmitEvent(stats.Event{Stage: stats.StageIMAP, Type: stats.EventTypeError, MessageID: msg.ID, Err: err})
				return err
			}

			if err := u.tracker.MarkProcessed(msg.Hash, msg.ID); err != nil {
				u.runner.EmitEvent(stats.Event{Stage: stats.StageIMAP, Type: stats.EventTypeError, MessageID: msg.ID, Err: err})
				return err
			}

			u.runner.EmitEvent(stats.Event{Stage: stats.StageIMAP, Type: stats.EventTypeUploaded, MessageID: msg.ID})
			if u.logger != nil {
				u.logger.Debug("uploaded message", "messageID", msg.ID, "target", u.mailboxFor(msg), "hash", msg.Hash, "seen", msg.Seen)
			}
		}
	}
}

func (u *Uploader) dial(ctx context.Context) (*imapclient.Client, func(), error) {
	address := net.JoinHostPort(u.opts.Host, strconv.Itoa(u.opts.Port))
	options := &imapclient.Options{}

	if u.opts.UseTLS {
		options.TLSConfig = &tls.Config{
			ServerName:         u.opts.Host,
			InsecureSkipVerify: u.opts.InsecureSkipVerify,
		}
	}

	var (
		client *imapclient.Client
		err    error
	)

	if u.opts.UseTLS {
		client, err = imapclient.DialTLS(address, options)
	} else {
		client, err = imapclient.DialInsecure(address, options)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("dial imap %s: %w", address, err)
	}

	if err := u.login(client); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	u.delim = u.hierarchyDelimiter(client)

	if err := u.ensureMailbox(client, u.targetFolder()); err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	if u.logger != nil {
		u.logger.Debug("imap connection established", "address", address, "user", u.opts.Username, "target", u.targetFolder(), "tls", u.opts.UseTLS, "authPlain", u.opts.AuthPlain, "delimiter", string(u.separator()))
	}

	stopClose := context.AfterFunc(ctx, func() {
		_ = client.Close()
	})

	cleanup := func() {
		stopClose()
		if ctx.Err() == nil {
			if err := client.Logout().Wait(); err != nil {
				if u.logger != nil {
					u.logger.Warn("imap logout failed", "err", err)
				}
			}
		}
		if err := client.Close(); err != nil && u.logger != nil {
			u.logger.Debug("imap connection closed", "err", err)
		}
	}

	return client, cleanup, nil
}

func (u *Uploader) login(client *imapclient.Client) error {
	if u.opts.AuthPlain {
		if err := client.Authenticate(sasl.NewPlainClient("", u.opts.Username, u.opts.Password)); err != nil {
			return fmt.Errorf("imap authenticate failed: %w", err)
		}
		return nil
	}
	if err := client.Login(u.opts.Username, u.opts.Password).Wait(); err != nil {
		return fmt.Errorf("imap login failed: %w", err)
	}
	return nil
}

func (u *Uploader) appendMessage(client *imapclient.Client, msg model.Message) error {
	target := u.mailboxFor(msg)
	if err := u.ensureMailbox(client, target); err != nil {
		return err
	}
	size := int64(len(msg.Raw))

	cmd := client.Append(target, size, appendOptions(msg))

	remaining := msg.Raw
	for len(remaining) > 0 {
		n, err := cmd.Write(remaining)
		if err != nil {
			_ = cmd.Close()
			return fmt.Errorf("append write: %w", err)
		}
		if n == 0 {
			_ = cmd.Close()
			return fmt.Errorf("append write: wrote 0 bytes")
		}
		remaining = remaining[n:]
	}

	if err := cmd.Close(); err != nil {
		return fmt.Errorf("append close: %w", err)
	}

	if _, err := cmd.Wait(); err != nil {
		return fmt.Errorf("append wait: %w", err)
	}

	return nil
}

// appendOptions carries the seen state and the original date of msg.
func appendOptions(msg model.Message) *imapv2.AppendOptions {
	if !msg.Seen && msg.ReceivedAt.IsZero() {
		return nil
	}
	opts := &imapv2.AppendOptions{Time: msg.ReceivedAt}
	if msg.Seen {
		opts.Flags = []imapv2.Flag{imapv2.FlagSeen}
	}
	return opts
}

func (u *Uploader) targetFolder() string {
	if u.opts.TargetFolder == "" {
		return "INBOX"
	}
	return u.opts.TargetFolder
}

// hierarchyDelimiter asks the server for its delimiter with LIST "" "".
// Servers that answer without one (flat namespaces) get the default.
func (u *Uploader) hierarchyDelimiter(client *imapclient.Client) rune {
	list, err := client.List("", "", nil).Collect()
	if err != nil {
		if u.logger != nil {
			u.logger.Warn("imap hierarchy delimiter lookup failed", "err", err)
		}
		return 0
	}
	for _, data := range list {
		if data.Delim != 0 {
			return data.Delim
		}
	}
	return 0
}

func (u *Uploader) separator() rune {
	if u.delim == 0 {
		return defaultDelim
	}
	return u.delim
}

// mailboxFor returns the mailbox msg is appended to. Cabinet folder paths
// use "/"; each segment is joined with the server delimiter, and a
// delimiter inside a folder name is replaced so it cannot nest.
func (u *Uploader) mailboxFor(msg model.Message) string {
	target := u.targetFolder()
	if !u.opts.KeepFolders {
		return target
	}
	sep := string(u.separator())
	var parts []string
	for _, p := range strings.Split(msg.Folder, "/") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, strings.ReplaceAll(p, sep, "_"))
		}
	}
	if len(parts) == 0 {
		return target
	}
	return target + sep + strings.Join(parts, sep)
}

func (u *Uploader) ensureMailbox(client *imapclient.Client, target string) error {
	if u.ensured[target] {
		return nil
	}
	cmd := client.Create(target, nil)
	if err := cmd.Wait(); err != nil {
		var respErr *imapv2.Error
		if errors.As(err, &respErr) {
			if respErr.Code == imapv2.ResponseCodeAlreadyExists {
				if u.logger != nil {
					u.logger.Debug("imap mailbox already exists", "mailbox", target)
				}
				u.ensured[target] = true
				return nil
			}
		}
		return fmt.Errorf("ensure mailbox %s: %w", target, err)
	}

	if u.logger != nil {
		u.logger.Info("imap mailbox created", "mailbox", target)
	}
	u.ensured[target] = true

	return nil
}
