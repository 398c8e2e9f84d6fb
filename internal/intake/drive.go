package intake

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/drive/v3"

	"github.com/contaflux/asientos/internal/processor"
	"github.com/contaflux/asientos/internal/sheet"
)

// DefaultPollInterval is how often the Drive folder is scanned.
const DefaultPollInterval = 300 * time.Second

// driveMimeTypes are the Drive document types the pipeline can read.
var driveMimeTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
	"text/plain":      true,
}

// DrivePoller scans a Google Drive folder for new invoice documents,
// downloads them and runs them through the pipeline.
type DrivePoller struct {
	svc      *drive.Service
	folderID string
	pipe     *processor.Pipeline
	sinks    []sheet.Sink
	state    *State
	interval time.Duration
	log      zerolog.Logger
}

// PollerOption configures a DrivePoller.
type PollerOption func(*DrivePoller)

// WithPollerSinks sets where generated entries are delivered.
func WithPollerSinks(sinks ...sheet.Sink) PollerOption {
	return func(p *DrivePoller) {
		p.sinks = append(p.sinks, sinks...)
	}
}

// WithPollerState sets the processed-file state store.
func WithPollerState(state *State) PollerOption {
	return func(p *DrivePoller) {
		p.state = state
	}
}

// WithPollInterval overrides the scan interval.
func WithPollInterval(d time.Duration) PollerOption {
	return func(p *DrivePoller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithPollerLogger sets the poller logger.
func WithPollerLogger(log zerolog.Logger) PollerOption {
	return func(p *DrivePoller) {
		p.log = log
	}
}

// NewDrivePoller creates a poller over one Drive folder.
func NewDrivePoller(svc *drive.Service, folderID string, pipe *processor.Pipeline, opts ...PollerOption) *DrivePoller {
	p := &DrivePoller{
		svc:      svc,
		folderID: folderID,
		pipe:     pipe,
		interval: DefaultPollInterval,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.state == nil {
		p.state, _ = LoadState("")
	}
	return p
}

// Run polls the folder until the context is cancelled. The first scan
// happens immediately.
func (p *DrivePoller) Run(ctx context.Context) error {
	p.log.Info().
		Str("folder_id", p.folderID).
		Dur("interval", p.interval).
		Msg("drive poller started")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.Poll(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Poll runs one scan cycle. Errors are logged, never fatal; whatever
// could not be processed is retried on the next cycle.
func (p *DrivePoller) Poll(ctx context.Context) {
	files, err := p.listFolder(ctx)
	if err != nil {
		p.log.Error().Err(err).Msg("listing drive folder failed")
		return
	}
	for _, f := range files {
		if !driveMimeTypes[f.MimeType] {
			p.log.Debug().Str("name", f.Name).Str("mime", f.MimeType).Msg("unsupported drive document type")
			continue
		}
		if p.state.Seen(f.Id, f.ModifiedTime) {
			continue
		}
		p.processFile(ctx, f)
	}
}

func (p *DrivePoller) listFolder(ctx context.Context) ([]*drive.File, error) {
	query := fmt.Sprintf("'%s' in parents and trashed = false", p.folderID)

	var files []*drive.File
	pageToken := ""
	for {
		call := p.svc.Files.List().
			Q(query).
			Spaces("drive").
			Fields("nextPageToken, files(id, name, mimeType, modifiedTime, webViewLink)").
			OrderBy("createdTime desc").
			PageSize(100).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		list, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("listing folder %s: %w", p.folderID, err)
		}
		files = append(files, list.Files...)
		if list.NextPageToken == "" {
			return files, nil
		}
		pageToken = list.NextPageToken
	}
}

func (p *DrivePoller) processFile(ctx context.Context, f *drive.File) {
	p.log.Info().Str("file_id", f.Id).Str("name", f.Name).Msg("new drive document")

	data, err := p.download(ctx, f.Id)
	if err != nil {
		p.log.Error().Err(err).Str("file_id", f.Id).Msg("drive download failed")
		return
	}

	result := p.pipe.ProcessFile(ctx, f.Name, data)
	if result.Error != nil {
		p.log.Error().Err(result.Error).Str("name", f.Name).Msg("document processing failed")
		return
	}
	if result.Entry == nil {
		p.log.Warn().Str("name", f.Name).Msg("no rule matched, document needs manual handling")
		p.mark(f)
		return
	}

	result.Entry.DocumentID = f.Id
	result.Entry.DocumentLink = f.WebViewLink
	if err := dispatch(ctx, p.sinks, result.Entry); err != nil {
		p.log.Error().Err(err).Str("name", f.Name).Msg("delivering entry failed")
		return
	}
	p.mark(f)
	p.log.Info().
		Str("name", f.Name).
		Bool("needs_review", result.Entry.NeedsReview).
		Msg("document processed")
}

func (p *DrivePoller) mark(f *drive.File) {
	if err := p.state.Mark(f.Id, f.ModifiedTime); err != nil {
		p.log.Warn().Err(err).Str("file_id", f.Id).Msg("saving intake state failed")
	}
}

func (p *DrivePoller) download(ctx context.Context, fileID string) ([]byte, error) {
	resp, err := p.svc.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", fileID, err)
	}
	return data, nil
}
