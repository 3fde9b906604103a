package xsr

import (
	"context"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FTPSource fetches a CSV export from an FTP server and decodes it the same
// way CSVSource does. Some source repositories only publish nightly dumps
// this way.
type FTPSource struct {
	Addr     string // host:port
	User     string
	Password string
	Path     string // remote file path
}

// NewFTPSource creates an FTPSource.
func NewFTPSource(addr, user, password, path string) *FTPSource {
	return &FTPSource{Addr: addr, User: user, Password: password, Path: path}
}

func (s *FTPSource) Fetch(ctx context.Context) ([]map[string]any, error) {
	conn, err := ftp.Dial(s.Addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(30*time.Second))
	if err != nil {
		return nil, eris.Wrapf(err, "xsr: ftp dial %s", s.Addr)
	}
	defer conn.Quit()

	if err := conn.Login(s.User, s.Password); err != nil {
		return nil, eris.Wrapf(err, "xsr: ftp login %s", s.Addr)
	}

	resp, err := conn.Retr(s.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "xsr: ftp retrieve %s", s.Path)
	}
	defer resp.Close()

	docs, err := decodeCSV(resp)
	if err != nil {
		return nil, eris.Wrapf(err, "xsr: decode ftp csv %s", s.Path)
	}

	zap.L().Info("xsr: read documents from ftp",
		zap.String("addr", s.Addr), zap.String("path", s.Path), zap.Int("count", len(docs)))
	return docs, nil
}
