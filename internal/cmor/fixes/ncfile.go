package fixes

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fhs/go-netcdf/netcdf"
)

// fileEdits lists the changes applied while a file is rewritten.
type fileEdits struct {
	// attrs sets character attributes, keyed by variable then attribute.
	attrs map[string]map[string]string
	// data transforms the values of floating point variables in place.
	data map[string]func(values []float64, shape []int)
}

// rewriteInto rewrites path into outputDir under the same base name. When
// path already lives there, as the output of an earlier fix, it is replaced
// through a temporary file.
func rewriteInto(path, outputDir string, edits fileEdits) (string, error) {
	//nolint:gosec // G301: Output directories are shared with downstream tools.
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	out := filepath.Join(outputDir, filepath.Base(path))
	tmp := out + ".tmp"
	if err := rewriteFile(path, tmp, edits); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, out); err != nil {
		return "", fmt.Errorf("failed to move fixed file into place: %w", err)
	}
	return out, nil
}

// sameDir reports whether path is directly inside dir.
func sameDir(path, dir string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	return filepath.Dir(absPath) == absDir
}

type copyJob struct {
	name  string
	src   netcdf.Var
	dst   netcdf.Var
	shape []int
}

// rewriteFile copies every variable, attribute and used dimension of src
// into a new NetCDF-4 file dst, applying edits on the way.
//
//nolint:gocyclo // Define and data phases are kept together to share the job list.
func rewriteFile(src, dst string, edits fileEdits) (err error) {
	in, err := netcdf.OpenFile(src, netcdf.NOWRITE)
	if err != nil {
		return fmt.Errorf("failed to open NetCDF file %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	out, err := netcdf.CreateFile(dst, netcdf.CLOBBER|netcdf.NETCDF4)
	if err != nil {
		return fmt.Errorf("failed to create NetCDF file %s: %w", dst, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", dst, cerr)
		}
	}()

	nvars, err := in.NVars()
	if err != nil {
		return fmt.Errorf("failed to count variables: %w", err)
	}
	dims := make(map[string]netcdf.Dim)
	jobs := make([]copyJob, 0, nvars)
	seen := make(map[string]bool, nvars)

	for i := 0; i < nvars; i++ {
		v := in.VarN(i)
		name, err := v.Name()
		if err != nil {
			return fmt.Errorf("failed to read variable name: %w", err)
		}
		seen[name] = true
		srcDims, err := v.Dims()
		if err != nil {
			return fmt.Errorf("failed to get dimensions of %s: %w", name, err)
		}
		dstDims := make([]netcdf.Dim, len(srcDims))
		shape := make([]int, len(srcDims))
		for j, d := range srcDims {
			dimName, err := d.Name()
			if err != nil {
				return fmt.Errorf("failed to get dimension name: %w", err)
			}
			n, err := d.Len()
			if err != nil {
				return fmt.Errorf("failed to get length of %s: %w", dimName, err)
			}
			//nolint:gosec // G115: NetCDF dimension lengths fit in int.
			shape[j] = int(n)
			od, ok := dims[dimName]
			if !ok {
				od, err = out.AddDim(dimName, n)
				if err != nil {
					return fmt.Errorf("failed to add dimension %s: %w", dimName, err)
				}
				dims[dimName] = od
			}
			dstDims[j] = od
		}

		t, err := v.Type()
		if err != nil {
			return fmt.Errorf("failed to get type of %s: %w", name, err)
		}
		ov, err := out.AddVar(name, t, dstDims)
		if err != nil {
			return fmt.Errorf("failed to add variable %s: %w", name, err)
		}

		nattrs, err := v.NAttrs()
		if err != nil {
			return fmt.Errorf("failed to count attributes of %s: %w", name, err)
		}
		for k := 0; k < nattrs; k++ {
			a, err := v.AttrN(k)
			if err != nil {
				return fmt.Errorf("failed to read attribute %d of %s: %w", k, name, err)
			}
			if _, override := edits.attrs[name][a.Name()]; override {
				continue
			}
			if err := copyAttr(a, ov.Attr(a.Name())); err != nil {
				return fmt.Errorf("variable %s: %w", name, err)
			}
		}
		for attr, val := range edits.attrs[name] {
			if err := ov.Attr(attr).WriteBytes([]byte(val)); err != nil {
				return fmt.Errorf("failed to set %s:%s: %w", name, attr, err)
			}
		}
		jobs = append(jobs, copyJob{name: name, src: v, dst: ov, shape: shape})
	}

	for name := range edits.attrs {
		if !seen[name] {
			return fmt.Errorf("variable %q not found in %s", name, src)
		}
	}
	for name := range edits.data {
		if !seen[name] {
			return fmt.Errorf("variable %q not found in %s", name, src)
		}
	}

	// Global attributes.
	ngattrs, err := in.NAttrs()
	if err != nil {
		return fmt.Errorf("failed to count global attributes: %w", err)
	}
	for k := 0; k < ngattrs; k++ {
		a, err := in.AttrN(k)
		if err != nil {
			return fmt.Errorf("failed to read global attribute %d: %w", k, err)
		}
		if err := copyAttr(a, out.Attr(a.Name())); err != nil {
			return fmt.Errorf("global: %w", err)
		}
	}

	if err := out.EndDef(); err != nil {
		return fmt.Errorf("failed to end define mode: %w", err)
	}

	for _, job := range jobs {
		if err := copyData(job, edits.data[job.name]); err != nil {
			return fmt.Errorf("failed to copy %s: %w", job.name, err)
		}
	}
	return nil
}

// copyAttr copies one attribute value.
func copyAttr(src, dst netcdf.Attr) error {
	n, err := src.Len()
	if err != nil {
		return fmt.Errorf("failed to get length of attribute %s: %w", src.Name(), err)
	}
	t, err := src.Type()
	if err != nil {
		return fmt.Errorf("failed to get type of attribute %s: %w", src.Name(), err)
	}
	switch t {
	case netcdf.CHAR:
		buf := make([]byte, n)
		if err = src.ReadBytes(buf); err == nil {
			err = dst.WriteBytes(buf)
		}
	case netcdf.DOUBLE:
		buf := make([]float64, n)
		if err = src.ReadFloat64s(buf); err == nil {
			err = dst.WriteFloat64s(buf)
		}
	case netcdf.FLOAT:
		buf := make([]float32, n)
		if err = src.ReadFloat32s(buf); err == nil {
			err = dst.WriteFloat32s(buf)
		}
	case netcdf.INT:
		buf := make([]int32, n)
		if err = src.ReadInt32s(buf); err == nil {
			err = dst.WriteInt32s(buf)
		}
	case netcdf.SHORT:
		buf := make([]int16, n)
		if err = src.ReadInt16s(buf); err == nil {
			err = dst.WriteInt16s(buf)
		}
	case netcdf.INT64:
		buf := make([]int64, n)
		if err = src.ReadInt64s(buf); err == nil {
			err = dst.WriteInt64s(buf)
		}
	default:
		return fmt.Errorf("unsupported attribute type %v for %s", t, src.Name())
	}
	if err != nil {
		return fmt.Errorf("failed to copy attribute %s: %w", src.Name(), err)
	}
	return nil
}

// copyData copies the values of one variable, applying edit to floating
// point data.
func copyData(job copyJob, edit func([]float64, []int)) error {
	total := 1
	for _, s := range job.shape {
		total *= s
	}
	if total == 0 {
		return nil
	}
	t, err := job.src.Type()
	if err != nil {
		return err
	}
	if edit != nil && t != netcdf.DOUBLE && t != netcdf.FLOAT {
		return fmt.Errorf("cannot edit values of type %v", t)
	}
	switch t {
	case netcdf.DOUBLE:
		buf := make([]float64, total)
		if err := job.src.ReadFloat64s(buf); err != nil {
			return err
		}
		if edit != nil {
			edit(buf, job.shape)
		}
		return job.dst.WriteFloat64s(buf)
	case netcdf.FLOAT:
		buf := make([]float32, total)
		if err := job.src.ReadFloat32s(buf); err != nil {
			return err
		}
		if edit != nil {
			wide := make([]float64, total)
			for i, v := range buf {
				wide[i] = float64(v)
			}
			edit(wide, job.shape)
			for i, v := range wide {
				buf[i] = float32(v)
			}
		}
		return job.dst.WriteFloat32s(buf)
	case netcdf.INT:
		buf := make([]int32, total)
		if err := job.src.ReadInt32s(buf); err != nil {
			return err
		}
		return job.dst.WriteInt32s(buf)
	case netcdf.SHORT:
		buf := make([]int16, total)
		if err := job.src.ReadInt16s(buf); err != nil {
			return err
		}
		return job.dst.WriteInt16s(buf)
	case netcdf.INT64:
		buf := make([]int64, total)
		if err := job.src.ReadInt64s(buf); err != nil {
			return err
		}
		return job.dst.WriteInt64s(buf)
	case netcdf.CHAR:
		buf := make([]byte, total)
		if err := job.src.ReadBytes(buf); err != nil {
			return err
		}
		return job.dst.WriteBytes(buf)
	default:
		return fmt.Errorf("unsupported variable type %v", t)
	}
}

// reverseRows reverses a row-major array along its first axis.
func reverseRows(values []float64, shape []int) {
	if len(shape) == 0 || shape[0] < 2 {
		return
	}
	row := len(values) / shape[0]
	for i, j := 0, shape[0]-1; i < j; i, j = i+1, j-1 {
		for k := 0; k < row; k++ {
			values[i*row+k], values[j*row+k] = values[j*row+k], values[i*row+k]
		}
	}
}
