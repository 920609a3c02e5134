package fastheat

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/astrogo/fitsio"

	"github.com/nanocal/nanocontrol/util"
)

// WriteCSV writes the capture as a time column in ms followed by one column
// per channel
func WriteCSV(w io.Writer, r *Result) error {
	cw := csv.NewWriter(w)
	header := make([]string, 0, len(r.Channels)+1)
	header = append(header, "time_ms")
	for _, ch := range util.Arange(r.LowChannel, r.LowChannel+len(r.Channels)) {
		header = append(header, fmt.Sprintf("ch%d", ch))
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	dt := 0.
	if r.AIRate > 0 {
		dt = 1000 / r.AIRate
	}
	vals := make([]float64, len(header))
	for i := 0; i < r.Samples(); i++ {
		vals[0] = float64(i) * dt
		for k, ch := range r.Channels {
			vals[k+1] = ch[i]
		}
		if err := cw.Write(util.FloatSliceToStrings(vals)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFITS writes the capture as a 2D float64 image, samples along the
// first axis and channels along the second
func WriteFITS(w io.Writer, r *Result) error {
	fits, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer fits.Close()
	n, chans := r.Samples(), len(r.Channels)
	im := fitsio.NewImage(-64, []int{n, chans})
	defer im.Close()
	cards := []fitsio.Card{
		{Name: "RUNID", Value: r.ID.String(), Comment: "fast heating run"},
		{Name: "DATE-OBS", Value: r.Started.UTC().Format("2006-01-02T15:04:05.000"), Comment: "scan start, UTC"},
		{Name: "AIRATE", Value: r.AIRate, Comment: "achieved input rate, Hz"},
		{Name: "AORATE", Value: r.AORate, Comment: "achieved output rate, Hz"},
		{Name: "LOWCHAN", Value: r.LowChannel, Comment: "board channel of row 0"},
		{Name: "BUNIT", Value: "V"},
	}
	if err := im.Header().Append(cards...); err != nil {
		return err
	}
	data := make([]float64, 0, n*chans)
	for _, ch := range r.Channels {
		data = append(data, ch...)
	}
	if err := im.Write(data); err != nil {
		return err
	}
	return fits.Write(im)
}

// Save writes <run id>.csv and <run id>.fits into dir and returns their paths
func Save(dir string, r *Result) ([]string, error) {
	writers := []struct {
		ext   string
		write func(io.Writer, *Result) error
	}{
		{".csv", WriteCSV},
		{".fits", WriteFITS},
	}
	var paths []string
	for _, wr := range writers {
		path := filepath.Join(dir, r.ID.String()+wr.ext)
		fid, err := os.Create(path)
		if err != nil {
			return paths, err
		}
		err = wr.write(fid, r)
		if cerr := fid.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return paths, fmt.Errorf("writing %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
