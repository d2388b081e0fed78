package texture

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/automation/tools/worker"
)

// parallelConversionRows is the row count above which conversion fans out to the worker pool.
const parallelConversionRows = 256

// ConvertToRGBA converts width x height pixels of src in format to tightly packed RGBA8 in dst.
//
// Parameters:
//   - dst: destination, at least width*height*4 bytes
//   - src: source pixels with stride width*format.BytesPerPixel()
//   - format: the source layout
//   - width, height: the size in pixels
//
// Returns:
//   - error: an error if either buffer is too short or the format is unknown
func ConvertToRGBA(dst, src []byte, format PixelFormat, width, height int) error {
	if err := checkConversion(dst, src, format, width, height); err != nil {
		return err
	}
	convertRows(dst, src, format, width, 0, height)
	return nil
}

func checkConversion(dst, src []byte, format PixelFormat, width, height int) error {
	switch format {
	case FormatRGBA8, FormatBGRA8, FormatGray8:
	default:
		return fmt.Errorf("convert: unknown pixel format %v", format)
	}
	if len(src) < width*height*format.BytesPerPixel() {
		return fmt.Errorf("convert: source has %d bytes, need %d", len(src), width*height*format.BytesPerPixel())
	}
	if len(dst) < width*height*4 {
		return fmt.Errorf("convert: destination has %d bytes, need %d", len(dst), width*height*4)
	}
	return nil
}

// convertRows converts rows [from, to).
func convertRows(dst, src []byte, format PixelFormat, width, from, to int) {
	switch format {
	case FormatRGBA8:
		copy(dst[from*width*4:to*width*4], src[from*width*4:to*width*4])
	case FormatBGRA8:
		for i := from * width * 4; i < to*width*4; i += 4 {
			dst[i+0], dst[i+1], dst[i+2], dst[i+3] = src[i+2], src[i+1], src[i+0], src[i+3]
		}
	case FormatGray8:
		for p := from * width; p < to*width; p++ {
			v := src[p]
			dst[p*4+0], dst[p*4+1], dst[p*4+2], dst[p*4+3] = v, v, v, 0xff
		}
	}
}

// convertParallel converts like ConvertToRGBA, splitting the rows into bands submitted to pool. It returns
// once every band has been converted.
func convertParallel(pool worker.DynamicWorkerPool, dst, src []byte, format PixelFormat, width, height int) error {
	if err := checkConversion(dst, src, format, width, height); err != nil {
		return err
	}
	if pool == nil || height < parallelConversionRows {
		convertRows(dst, src, format, width, 0, height)
		return nil
	}

	// Workers are reused across calls; the WaitGroup is the barrier since pool.Wait() blocks until
	// workers idle-exit.
	bands := pool.GetMaxWorkers()
	rowsPerBand := (height + bands - 1) / bands
	var wg sync.WaitGroup
	for id, from := 0, 0; from < height; id, from = id+1, from+rowsPerBand {
		to := min(from+rowsPerBand, height)
		wg.Add(1)
		pool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				convertRows(dst, src, format, width, from, to)
				return nil, nil
			},
		})
	}
	wg.Wait()
	return nil
}
