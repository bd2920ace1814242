package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/bz888/sagan/internal/chat"
	"github.com/gin-gonic/gin"
)

const (
	streamContentType = "text/plain; charset=utf-8"

	// maxRequestBody caps the chat body read from the client.
	maxRequestBody = 1 << 20

	msgMalformedRequest   = "Malformed request body"
	msgBackendUnreachable = "Failed to connect to backend"
)

func statusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, statusResponse{
		PortWorking:   true,
		ServerWorking: true,
	})
}

// chatHandler forwards the JSON body to the backend and relays the answer.
// Backend error statuses come back with their body verbatim.
func (s *Server) chatHandler(c *gin.Context) {
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.log.Warn("Rejected request body over", tooLarge.Limit, "bytes")
		} else {
			s.log.Error("Failed to read request body:", err)
		}
		c.JSON(http.StatusBadRequest, chat.ErrorEnvelope{Error: msgMalformedRequest})
		return
	}

	var body bytes.Buffer
	if err := json.Compact(&body, raw); err != nil {
		s.log.Warn("Rejected malformed request body:", err)
		c.JSON(http.StatusBadRequest, chat.ErrorEnvelope{Error: msgMalformedRequest})
		return
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodPost, s.opts.BackendURL, &body)
	if err != nil {
		s.log.Error("Failed to build backend request:", err)
		c.JSON(http.StatusInternalServerError, chat.ErrorEnvelope{Error: msgBackendUnreachable})
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.backend.Do(req)
	if err != nil {
		s.log.Error("Proxy error:", err)
		c.JSON(http.StatusInternalServerError, chat.ErrorEnvelope{Error: msgBackendUnreachable})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errorText, err := io.ReadAll(resp.Body)
		if err != nil {
			s.log.Warn("Backend error body cut short:", err)
		}
		s.log.Warn("Backend answered", resp.StatusCode)
		c.Data(resp.StatusCode, streamContentType, errorText)
		return
	}

	c.Header("Content-Type", streamContentType)
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	n, err := relay(c.Writer, resp.Body)
	if err != nil {
		// headers are gone, the client sees a truncated stream
		s.log.Warn("Stream relay stopped after", n, "bytes:", err)
		return
	}
	s.log.Info("Relayed", n, "bytes")
}

// relay copies src to w, flushing after every read.
func relay(w gin.ResponseWriter, src io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	var written int64
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			m, err := w.Write(buf[:n])
			written += int64(m)
			if err != nil {
				return written, err
			}
			w.Flush()
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return written, nil
			}
			return written, readErr
		}
	}
}
