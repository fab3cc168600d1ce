package api

import (
	"archive/zip"
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"prodmon/charting"
	"prodmon/jobs"
)

// ExportSessionCharts generates and zips the charts for one session
func (h *Handler) ExportSessionCharts(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	session, err := h.repo.GetSession(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "session not found")
			return
		}
		respondStoreError(w, err)
		return
	}

	gen := charting.NewGenerator()
	zipBuf := new(bytes.Buffer)
	zipWriter := zip.NewWriter(zipBuf)

	// Helper to add file
	addFile := func(name string, data []byte) {
		f, err := zipWriter.Create(name)
		if err != nil {
			fmt.Printf("Zip create error: %v\n", err)
			return
		}
		f.Write(data)
	}

	if img, err := gen.GenerateHourly(session); err == nil {
		addFile("hourly_plan_vs_actual.png", img)
	}
	if img, err := gen.GenerateCumulative(session); err == nil {
		addFile("cumulative_trend.png", img)
	}

	zipWriter.Close()

	serveZip(w, fmt.Sprintf("charts_session_%d_%s.zip", id, time.Now().Format("20060102_150405")), zipBuf.Bytes())
}

// ExportAllCharts renders charts for the most recent sessions on the
// worker pool and streams them back as one archive.
func (h *Handler) ExportAllCharts(w http.ResponseWriter, r *http.Request) {
	limit := h.cfg.Sessions.ListLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	sessions, err := h.repo.GetSessions(limit)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if len(sessions) == 0 {
		respondError(w, http.StatusNotFound, "no sessions to chart")
		return
	}

	gen := charting.NewGenerator()

	type rendered struct {
		name string
		data []byte
	}
	var (
		mu     sync.Mutex
		images []rendered
		wg     sync.WaitGroup
	)

	for i := range sessions {
		s := &sessions[i]
		wg.Add(1)
		job := jobs.Job{
			ID: fmt.Sprintf("charts-session-%d", s.ID),
			Execute: func() error {
				defer wg.Done()

				hourly, herr := gen.GenerateHourly(s)
				cumulative, cerr := gen.GenerateCumulative(s)

				mu.Lock()
				defer mu.Unlock()
				prefix := fmt.Sprintf("session_%d_%s", s.ID, s.Date)
				if herr == nil {
					images = append(images, rendered{prefix + "_hourly.png", hourly})
				}
				if cerr == nil {
					images = append(images, rendered{prefix + "_cumulative.png", cumulative})
				}
				if herr != nil {
					return herr
				}
				return cerr
			},
		}
		if err := h.pool.Submit(job); err != nil {
			wg.Done()
		}
	}
	wg.Wait()

	if len(images) == 0 {
		respondError(w, http.StatusNotFound, "no charts could be rendered")
		return
	}

	zipBuf := new(bytes.Buffer)
	zipWriter := zip.NewWriter(zipBuf)
	for _, img := range images {
		f, err := zipWriter.Create(img.name)
		if err != nil {
			continue
		}
		f.Write(img.data)
	}
	zipWriter.Close()

	serveZip(w, fmt.Sprintf("charts_%s.zip", time.Now().Format("20060102_150405")), zipBuf.Bytes())
}

func serveZip(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}
