package attendance

import (
	"bytes"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	domainAttendance "stokmanager/internal/domain/attendance"
)

const (
	utf8BOM         = "\uFEFF"
	csvTimeLayout   = "02/01/2006 15:04:05"
	missingValue    = "-"
	unknownAttendee = "Tidak Diketahui"
)

var csvHeader = []string{"No", "NIM", "Nama", "Waktu Absen", "Device ID", "Acara", "Lokasi"}

type CSVDefaults struct {
	EventName string
	Location  string
	Timezone  *time.Location
}

// WriteCSV writes records as a spreadsheet-friendly CSV: UTF-8 BOM, fixed
// header, one row per record and no trailing newline.
func WriteCSV(w io.Writer, records []*domainAttendance.Record, defaults CSVDefaults) error {
	loc := defaults.Timezone
	if loc == nil {
		loc = time.UTC
	}

	var buf bytes.Buffer
	buf.WriteString(utf8BOM)

	cw := csv.NewWriter(&buf)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for i, r := range records {
		row := []string{
			strconv.Itoa(i + 1),
			orDefault(r.NIM, missingValue),
			orDefault(r.Nama, unknownAttendee),
			r.Timestamp.In(loc).Format(csvTimeLayout),
			orDefault(r.DeviceID, missingValue),
			orDefault(r.EventName, defaults.EventName),
			orDefault(r.Location, defaults.Location),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}

	_, err := w.Write(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
	return err
}

// ExportFilename is the attachment name for a day's export.
func ExportFilename(date string) string {
	return "Absensi_Seminar_" + date + ".csv"
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
