package action

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/haatos/conveyor/internal/pipeline"
	"github.com/haatos/conveyor/internal/util"
)

// RemoteAction runs a script on another host over SSH. The private key
// comes from the run context's credential set, never from disk. When an
// artifacts directory is given its contents are downloaded over SFTP
// and archived after the script succeeds.
type RemoteAction struct {
	Host         string
	Username     string
	CredentialID string
	Script       string
	ArtifactsDir string
}

func NewRemoteFactory() Factory {
	return func(params map[string]string) (pipeline.Action, error) {
		host, err := requireParam(params, "host")
		if err != nil {
			return nil, err
		}
		username, err := requireParam(params, "username")
		if err != nil {
			return nil, err
		}
		credential, err := requireParam(params, "credential")
		if err != nil {
			return nil, err
		}
		script, err := requireParam(params, "script")
		if err != nil {
			return nil, err
		}
		return &RemoteAction{
			Host:         host,
			Username:     username,
			CredentialID: credential,
			Script:       script,
			ArtifactsDir: params["artifacts"],
		}, nil
	}
}

func (a *RemoteAction) RequiredCredentials() []string {
	return []string{a.CredentialID}
}

func (a *RemoteAction) Invoke(
	ctx context.Context,
	rc *pipeline.RunContext,
) (*pipeline.ActionResult, error) {
	secret, ok := rc.Credential(a.CredentialID)
	if !ok {
		return nil, fmt.Errorf("credential %q not in run context", a.CredentialID)
	}

	client, err := a.connectSSH(secret)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	output, err := runRemoteCommand(ctx, client, a.Script)
	result := &pipeline.ActionResult{
		Status:    pipeline.ActionSuccess,
		Artifacts: map[string]string{"output": strings.TrimSpace(output)},
	}
	if err != nil {
		result.Status = pipeline.ActionFailure
		result.Err = err.Error()
		return result, nil
	}

	if a.ArtifactsDir != "" {
		archive, err := a.collectArtifacts(client, rc.BuildID)
		if err != nil {
			result.Status = pipeline.ActionFailure
			result.Err = fmt.Sprintf("collecting artifacts: %v", err)
			return result, nil
		}
		result.Artifacts["archive"] = archive
	}
	return result, nil
}

func (a *RemoteAction) connectSSH(privateKey pipeline.Secret) (*ssh.Client, error) {
	signer, err := ssh.ParsePrivateKey([]byte(privateKey.Reveal()))
	if err != nil {
		return nil, fmt.Errorf("parsing ssh private key: %w", err)
	}
	cc := &ssh.ClientConfig{
		User:            a.Username,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         10 * time.Second,
	}

	hostname := a.Host
	if !strings.Contains(hostname, ":") {
		hostname += ":22"
	}
	return ssh.Dial("tcp", hostname, cc)
}

func runRemoteCommand(ctx context.Context, client *ssh.Client, command string) (string, error) {
	sess, err := client.NewSession()
	if err != nil {
		return "", err
	}
	defer sess.Close()

	out := new(bytes.Buffer)
	sess.Stdout = out
	sess.Stderr = out

	doneCh := make(chan error, 1)
	go func() {
		doneCh <- sess.Run(command)
	}()

	select {
	case <-ctx.Done():
		_ = sess.Signal(ssh.SIGINT)
		return out.String(), ctx.Err()
	case err := <-doneCh:
		return out.String(), err
	}
}

func (a *RemoteAction) collectArtifacts(client *ssh.Client, buildID string) (string, error) {
	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		return "", err
	}
	defer sftpClient.Close()

	if exists, _ := util.PathExists("artifacts"); !exists {
		if err := os.Mkdir("artifacts", os.ModePerm); err != nil {
			return "", err
		}
	}
	localDir := filepath.Join("artifacts", buildID)
	if err := recursiveDownload(sftpClient, a.ArtifactsDir, localDir); err != nil {
		return "", err
	}
	return util.ArchiveDirectory(localDir)
}

func recursiveDownload(sftpClient *sftp.Client, remotePath, localPath string) error {
	files, err := sftpClient.ReadDir(remotePath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(localPath, os.ModePerm); err != nil {
		return err
	}

	for _, f := range files {
		remoteFilePath := filepath.Join(remotePath, f.Name())
		localFilePath := filepath.Join(localPath, f.Name())

		if f.IsDir() {
			if err := recursiveDownload(sftpClient, remoteFilePath, localFilePath); err != nil {
				return err
			}
		} else {
			if err := downloadFile(sftpClient, remoteFilePath, localFilePath); err != nil {
				return err
			}
		}
	}

	return nil
}

func downloadFile(sftpClient *sftp.Client, remotePath, localPath string) error {
	remoteFile, err := sftpClient.Open(remotePath)
	if err != nil {
		return err
	}
	defer remoteFile.Close()

	localFile, err := os.Create(localPath)
	if err != nil {
		return err
	}
	defer localFile.Close()

	if _, err := io.Copy(localFile, remoteFile); err != nil {
		return err
	}

	return nil
}
