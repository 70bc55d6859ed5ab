package storagesvc

import (
	"context"
	"io"
	"net"
	"os"
	"path"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/trezcool/chuo/core"
)

// sftpStorage stores files on a remote server. The connection is opened lazily and reopened after a failure.
type sftpStorage struct {
	addr   string
	root   string
	sshCfg *ssh.ClientConfig

	mu     sync.Mutex
	ssh    *ssh.Client
	client *sftp.Client
}

var _ core.FileStorage = (*sftpStorage)(nil)

func NewSFTPStorage(conf core.StorageConfig) (*sftpStorage, error) {
	if conf.SFTPHost == "" || conf.SFTPUser == "" {
		return nil, errors.New("sftp storage needs a host and a user")
	}
	hostKeyCallback, err := newHostKeyCallback(conf)
	if err != nil {
		return nil, err
	}
	addr := conf.SFTPHost
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "22")
	}
	return &sftpStorage{
		addr: addr,
		root: conf.Root,
		sshCfg: &ssh.ClientConfig{
			User:            conf.SFTPUser,
			Auth:            []ssh.AuthMethod{ssh.Password(conf.SFTPPassword)},
			HostKeyCallback: hostKeyCallback,
			Timeout:         20 * time.Second,
		},
	}, nil
}

// newHostKeyCallback checks the server key against the configured known_hosts file.
// Skipping the check must be asked for explicitly.
func newHostKeyCallback(conf core.StorageConfig) (ssh.HostKeyCallback, error) {
	if conf.SFTPInsecureIgnoreHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	if conf.SFTPKnownHosts == "" {
		return nil, errors.New("sftp storage needs a known_hosts file (storage.sftpKnownHosts)")
	}
	cb, err := knownhosts.New(conf.SFTPKnownHosts)
	return cb, errors.Wrap(err, "reading known_hosts")
}

func (s *sftpStorage) conn(ctx context.Context) (*sftp.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, nil
	}

	type dialRes struct {
		client *ssh.Client
		err    error
	}
	ch := make(chan dialRes, 1)
	go func() {
		c, err := ssh.Dial("tcp", s.addr, s.sshCfg)
		ch <- dialRes{client: c, err: err}
	}()

	var sshClient *ssh.Client
	select {
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.client != nil {
				_ = r.client.Close()
			}
		}()
		return nil, errors.Wrap(ctx.Err(), "sftp dial")
	case r := <-ch:
		if r.err != nil {
			return nil, errors.Wrap(r.err, "sftp dial")
		}
		sshClient = r.client
	}

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		_ = sshClient.Close()
		return nil, errors.Wrap(err, "sftp client")
	}
	s.ssh, s.client = sshClient, client
	return client, nil
}

// reset drops the connection so the next call reconnects.
func (s *sftpStorage) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		_ = s.client.Close()
	}
	if s.ssh != nil {
		_ = s.ssh.Close()
	}
	s.client, s.ssh = nil, nil
}

func (s *sftpStorage) path(key string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return path.Join(s.root, key), nil
}

func (s *sftpStorage) Save(ctx context.Context, key string, r io.Reader) (int64, error) {
	fp, err := s.path(key)
	if err != nil {
		return 0, err
	}
	client, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}

	if err = client.MkdirAll(path.Dir(fp)); err != nil {
		s.reset()
		return 0, errors.Wrap(err, "sftp mkdir")
	}
	dst, err := client.Create(fp)
	if err != nil {
		s.reset()
		return 0, errors.Wrap(err, "sftp create")
	}
	n, err := io.Copy(dst, readerWithContext{ctx: ctx, r: r})
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = client.Remove(fp)
		return 0, errors.Wrap(err, "sftp write")
	}
	return n, nil
}

func (s *sftpStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	fp, err := s.path(key)
	if err != nil {
		return nil, err
	}
	client, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	f, err := client.Open(fp)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, core.NewNotFoundError("file not found")
		}
		s.reset()
		return nil, errors.Wrap(err, "sftp open")
	}
	return f, nil
}

func (s *sftpStorage) Delete(ctx context.Context, key string) error {
	fp, err := s.path(key)
	if err != nil {
		return err
	}
	client, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if err = client.Remove(fp); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.reset()
		return errors.Wrap(err, "sftp remove")
	}
	return nil
}

// Close closes the connection, if any.
func (s *sftpStorage) Close() error {
	s.reset()
	return nil
}
