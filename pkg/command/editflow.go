package command

import (
	"os"
	"os/exec"

	"github.com/lightkeeper-hq/lightkeeper/pkg/cachedir"
	"github.com/lightkeeper-hq/lightkeeper/pkg/connector"
	"github.com/lightkeeper-hq/lightkeeper/pkg/host"
	"github.com/lightkeeper-hq/lightkeeper/pkg/lkerror"
	"github.com/lightkeeper-hq/lightkeeper/pkg/module"
)

// EditFile drives the TextEditor action's round trip: download the remote
// file, spawn editorPath on the staged local copy, and on editor exit
// upload the edited bytes back. The concurrent-modification check happens
// inside the dispatcher's Upload handling, which compares the remote
// file's current hash against the sidecar written at download time.
func (m *Manager) EditFile(h *host.Host, connectorSpec module.Spec, remotePath, editorPath string) error {
	var downloadedLocalPath string
	downloadDone := make(chan error, 1)

	downloadReq := &connector.Request{
		ConnectorSpec: connectorSpec,
		Host:          h,
		Type:          connector.Download,
		RemotePath:    remotePath,
		CachePolicy:   connector.BypassCache,
		Handler: func(resp connector.ResponseMessage) {
			if resp.ReturnCode != 0 {
				downloadDone <- lkerror.New(lkerror.Other, resp.Message)

				return
			}

			downloadedLocalPath = resp.Message
			downloadDone <- nil
		},
	}

	m.dispatcher.Enqueue(downloadReq)

	if err := <-downloadDone; err != nil {
		return err
	}

	metadata, err := cachedir.ReadMetadata(downloadedLocalPath)
	if err != nil {
		return err
	}

	metadata.Temporary = true

	if err := exec.Command(editorPath, downloadedLocalPath).Run(); err != nil {
		return lkerror.Wrap(lkerror.Other, "external editor failed", err)
	}

	data, err := os.ReadFile(downloadedLocalPath)
	if err != nil {
		return err
	}

	uploadDone := make(chan error, 1)

	uploadReq := &connector.Request{
		ConnectorSpec:  connectorSpec,
		Host:           h,
		Type:           connector.Upload,
		UploadMetadata: &metadata,
		UploadBytes:    data,
		CachePolicy:    connector.BypassCache,
		Handler: func(resp connector.ResponseMessage) {
			if resp.ReturnCode != 0 {
				uploadDone <- lkerror.New(lkerror.Other, resp.Message)

				return
			}

			uploadDone <- nil
		},
	}

	m.dispatcher.Enqueue(uploadReq)

	return <-uploadDone
}
