package imageprovider

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/tphakala/imagefinder/internal/httpclient"
	"github.com/tphakala/imagefinder/internal/logger"
	"github.com/tphakala/imagefinder/internal/observability/metrics"
)

// maxDrainBytes bounds how much of a probe body is read to keep the
// connection reusable
const maxDrainBytes = 64 << 10

// SupplierProber checks whether an image exists at a supplier URL.
// HTTP 200 confirms the target; any other status and every transport
// failure mean the image is absent. There is no retry.
type SupplierProber struct {
	client  *httpclient.Client
	metrics metrics.Recorder
}

// NewSupplierProber creates a prober. A nil recorder discards metrics.
func NewSupplierProber(client *httpclient.Client, recorder metrics.Recorder) *SupplierProber {
	if recorder == nil {
		recorder = metrics.NopRecorder{}
	}
	return &SupplierProber{client: client, metrics: recorder}
}

// Resolve probes target.URL with a single GET.
func (p *SupplierProber) Resolve(ctx context.Context, target ProbeTarget) ProbeOutcome {
	start := time.Now()
	outcome := p.probe(ctx, target)

	p.metrics.RecordProbeDuration(target.Kind.String(), time.Since(start).Seconds())
	p.metrics.RecordOutcome(target.Kind.String(), outcome.Result.String())
	return outcome
}

func (p *SupplierProber) probe(ctx context.Context, target ProbeTarget) ProbeOutcome {
	log := GetLogger().WithContext(ctx)

	resp, err := p.client.Get(ctx, target.URL)
	if err != nil {
		log.Debug("Supplier probe failed, treating as absent",
			logger.String("identifier", target.Identifier),
			logger.String("url", target.URL),
			logger.Error(err))
		return Absent(target)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		log.Debug("No supplier image",
			logger.String("identifier", target.Identifier),
			logger.String("url", target.URL),
			logger.Int("status_code", resp.StatusCode))
		return Absent(target)
	}

	log.Debug("Supplier image confirmed",
		logger.String("identifier", target.Identifier),
		logger.String("url", target.URL))
	return Confirm(target, target.URL)
}
