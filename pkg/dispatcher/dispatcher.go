// Package dispatcher turns ConnectorRequests into connector traffic: it
// consults the response cache, serialises stateful connectors, parallelises
// stateless ones, and fans responses back to the request's handler.
package dispatcher

import (
	"context"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/lightkeeper-hq/lightkeeper/pkg/cache"
	"github.com/lightkeeper-hq/lightkeeper/pkg/cachedir"
	"github.com/lightkeeper-hq/lightkeeper/pkg/connector"
	"github.com/lightkeeper-hq/lightkeeper/pkg/lkerror"
	"github.com/lightkeeper-hq/lightkeeper/pkg/module"
)

// queueDepth bounds the dispatcher's request queue per the core's
// back-pressure requirement: producers block once it fills.
const queueDepth = 256

// Dispatcher owns the request queue and fans work out across per-connector
// worker goroutines, one of which is spawned lazily the first time a given
// (host, connector) pair is seen - this gives FIFO ordering per connector
// while letting different connectors run concurrently, matching the core
// spec's ordering and parallelism requirements.
type Dispatcher struct {
	log       logrus.FieldLogger
	pool      *connector.Pool
	cache     cache.Store
	cacheDir  string
	metadatas func(module.Spec) (module.Metadata, bool)

	requests chan *connector.Request

	workersMu sync.Mutex
	workers   map[workerKey]chan *connector.Request

	done chan struct{}
}

type workerKey struct {
	hostID string
	spec   module.Spec
}

// MetadataLookup resolves the spec of the monitor or command that issued a
// request (Request.SourceSpec) to its registered metadata, used to decide
// that request's cache scope.
type MetadataLookup func(module.Spec) (module.Metadata, bool)

// New creates a Dispatcher. cacheDir is the local staging directory for
// Download/Upload requests; pass "" to resolve it lazily via cachedir.Dir.
func New(log logrus.FieldLogger, pool *connector.Pool, store cache.Store, metadatas MetadataLookup, cacheDir string) *Dispatcher {
	if cacheDir == "" {
		if dir, err := cachedir.Dir(); err == nil {
			cacheDir = dir
		}
	}

	return &Dispatcher{
		log:       log.WithField("component", "dispatcher"),
		pool:      pool,
		cache:     store,
		cacheDir:  cacheDir,
		metadatas: metadatas,
		requests:  make(chan *connector.Request, queueDepth),
		workers:   make(map[workerKey]chan *connector.Request),
		done:      make(chan struct{}),
	}
}

// Enqueue submits req for processing. It blocks if the dispatcher's queue
// is full, providing the core's required back-pressure.
func (d *Dispatcher) Enqueue(req *connector.Request) {
	d.requests <- req
}

// Run consumes the intake queue and routes each request to its
// per-(host,connector) FIFO worker until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.shutdown()

			return
		case req := <-d.requests:
			d.routeToWorker(ctx, req)
		}
	}
}

func (d *Dispatcher) routeToWorker(ctx context.Context, req *connector.Request) {
	key := workerKey{hostID: req.Host.ID, spec: req.ConnectorSpec}

	d.workersMu.Lock()
	ch, ok := d.workers[key]
	if !ok {
		ch = make(chan *connector.Request, queueDepth)
		d.workers[key] = ch

		go d.worker(ctx, ch)
	}
	d.workersMu.Unlock()

	ch <- req
}

// worker processes requests for exactly one (host, connector) pair in FIFO
// order, giving the core's "same connector ⇒ FIFO, different connectors ⇒
// concurrent" ordering guarantee.
func (d *Dispatcher) worker(ctx context.Context, ch chan *connector.Request) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-ch:
			d.process(req)
		}
	}
}

func (d *Dispatcher) process(req *connector.Request) {
	metadata, _ := d.metadatas(req.SourceSpec)

	cacheable := metadata.CacheScope != module.CacheNone
	hostScoped := metadata.CacheScope == module.CacheHost

	switch req.Type {
	case connector.Download, connector.Upload:
		d.processSingle(req, cacheable, hostScoped)
	default:
		d.handleMessages(req, cacheable, hostScoped)
	}
}

// processSingle handles the whole-request response types (Download,
// Upload): one connector call, one cached entry, one delivery.
func (d *Dispatcher) processSingle(req *connector.Request, cacheable, hostScoped bool) {
	fingerprint := cache.Fingerprint(req.ConnectorSpec, req.Messages, req.Host.ID, hostScoped)

	if cacheable && req.CachePolicy == connector.UseCache {
		if resp, ok := d.cache.Get(context.Background(), fingerprint); ok {
			d.deliver(req, resp)

			return
		}
	}

	lease, err := d.pool.Acquire(req.Host.ID, req.Host.Address(), req.ConnectorSpec)
	if err != nil {
		d.deliver(req, connector.Final(err.Error(), -1))

		return
	}
	defer lease.Release()

	var final connector.ResponseMessage

	if req.Type == connector.Download {
		final = d.handleDownload(lease.Connector, req)
	} else {
		final = d.handleUpload(lease.Connector, req)
	}

	if cacheable {
		d.cache.Put(context.Background(), fingerprint, req.Host.ID, final)
	}

	d.deliver(req, final)
}

// handleMessages runs each message in order, caching and delivering each
// one's final response independently so a request's handler sees exactly
// one delivery per message, matching the core's per-message response
// contract. Partials stream to the handler as they arrive. The loop stops
// at the first non-zero return code, leaving any remaining messages unsent.
func (d *Dispatcher) handleMessages(req *connector.Request, cacheable, hostScoped bool) {
	var lease *connector.Lease

	defer func() {
		if lease != nil {
			lease.Release()
		}
	}()

	for _, msg := range req.Messages {
		fingerprint := cache.Fingerprint(req.ConnectorSpec, []string{msg}, req.Host.ID, hostScoped)

		if cacheable && req.CachePolicy == connector.UseCache {
			if resp, ok := d.cache.Get(context.Background(), fingerprint); ok {
				d.deliver(req, resp)

				continue
			}
		}

		if lease == nil {
			acquired, err := d.pool.Acquire(req.Host.ID, req.Host.Address(), req.ConnectorSpec)
			if err != nil {
				d.deliver(req, connector.Final(err.Error(), -1))

				return
			}

			lease = acquired
		}

		final, err := d.sendOneMessage(lease.Connector, req, msg)
		if err != nil {
			d.deliver(req, connector.Final(err.Error(), -1))

			return
		}

		if cacheable {
			d.cache.Put(context.Background(), fingerprint, req.Host.ID, final)
		}

		d.deliver(req, final)

		if final.ReturnCode != 0 {
			return
		}
	}
}

// sendOneMessage sends msg and streams any partials to the handler,
// returning the message's final response.
func (d *Dispatcher) sendOneMessage(conn connector.Connector, req *connector.Request, msg string) (connector.ResponseMessage, error) {
	resp, err := conn.SendMessage(msg, false)
	if err != nil {
		return connector.ResponseMessage{}, err
	}

	for resp.IsPartial {
		if !req.Cancelled() {
			req.Handler(resp)
		}

		resp, err = conn.ReceivePartialResponse()
		if err != nil {
			return connector.ResponseMessage{}, err
		}
	}

	return resp, nil
}

func (d *Dispatcher) handleDownload(conn connector.Connector, req *connector.Request) connector.ResponseMessage {
	metadata, data, err := conn.DownloadFile(req.RemotePath)
	if err != nil {
		return connector.Final(err.Error(), -1)
	}

	localPath := cachedir.LocalPath(d.cacheDir, req.Host.ID, req.RemotePath)

	if err := os.MkdirAll(d.cacheDir, 0o700); err != nil {
		return connector.Final(err.Error(), -1)
	}

	if err := os.WriteFile(localPath, data, 0o600); err != nil {
		return connector.Final(err.Error(), -1)
	}

	if err := cachedir.WriteMetadata(localPath, metadata); err != nil {
		return connector.Final(err.Error(), -1)
	}

	return connector.Final(localPath, 0)
}

// handleUpload re-reads the sidecar hash recorded at download time and
// refuses to overwrite the remote file if it changed underneath us.
func (d *Dispatcher) handleUpload(conn connector.Connector, req *connector.Request) connector.ResponseMessage {
	if req.UploadMetadata == nil {
		return connector.Final("upload request missing metadata", -1)
	}

	current, _, err := conn.DownloadFile(req.UploadMetadata.RemotePath)
	if err == nil && current.RemoteFileHash != "" && current.RemoteFileHash != req.UploadMetadata.RemoteFileHash {
		return connector.Final(lkerror.New(lkerror.Other, "remote file modified since download").Error(), -1)
	}

	if err := conn.UploadFile(*req.UploadMetadata, req.UploadBytes); err != nil {
		return connector.Final(err.Error(), -1)
	}

	if req.UploadMetadata.Temporary {
		localPath := cachedir.LocalPath(d.cacheDir, req.Host.ID, req.UploadMetadata.RemotePath)
		_ = os.Remove(localPath)
		_ = os.Remove(cachedir.MetadataPath(localPath))
	}

	return connector.Final("uploaded", 0)
}

// deliver drops the response instead of calling the handler if the request
// was cancelled, per the core's cancellation semantics: the connector call
// still completes, only delivery is skipped.
func (d *Dispatcher) deliver(req *connector.Request, resp connector.ResponseMessage) {
	if req.Cancelled() {
		return
	}

	req.Handler(resp)
}

func (d *Dispatcher) shutdown() {
	close(d.done)
}

// Invalidate drops every cached response scoped to hostID, e.g. when a
// host is removed or re-provisioned and its stale answers should not
// survive it.
func (d *Dispatcher) Invalidate(ctx context.Context, hostID string) {
	d.cache.Invalidate(ctx, hostID)
}
