package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"testing"
)

func TestLaunchError(t *testing.T) {
	err := NewLaunchError("eslint", "/proj", exec.ErrNotFound)

	if err.Type != ErrorTypeLaunch {
		t.Errorf("Expected Type to be ErrorTypeLaunch, got %v", err.Type)
	}

	if !errors.Is(err, exec.ErrNotFound) {
		t.Errorf("Expected error to unwrap to exec.ErrNotFound")
	}

	if !err.NotFound() {
		t.Errorf("Expected NotFound to be true")
	}

	expectedMsg := `failed to launch analyzer "eslint": executable file not found in $PATH`
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message %q, got %q", expectedMsg, err.Error())
	}

	wrapped := fmt.Errorf("scan: %w", err)
	if !IsLaunchFailure(wrapped) {
		t.Errorf("Expected wrapped launch error to be detected")
	}
	if IsLaunchFailure(errors.New("other")) {
		t.Errorf("Expected plain error not to be a launch failure")
	}
}

func TestLaunchErrorHint(t *testing.T) {
	missing := NewLaunchError("/nope/eslint", "", &fs.PathError{Op: "fork/exec", Path: "/nope/eslint", Err: fs.ErrNotExist})
	denied := NewLaunchError("/bin/eslint", "", &fs.PathError{Op: "fork/exec", Path: "/bin/eslint", Err: fs.ErrPermission})

	if missing.Hint() == denied.Hint() {
		t.Errorf("Expected different hints for missing and non-executable analyzers")
	}
	if denied.NotFound() {
		t.Errorf("Expected permission error not to count as not found")
	}
}

func TestParseError(t *testing.T) {
	underlying := errors.New("unexpected end of JSON input")
	err := NewParseError("json", `[{"filePath":`, underlying)

	if err.Type != ErrorTypeParse {
		t.Errorf("Expected Type to be ErrorTypeParse, got %v", err.Type)
	}

	if !errors.Is(err, underlying) {
		t.Errorf("Expected error to unwrap to underlying error")
	}

	expectedMsg := `json output parse error (record "[{\"filePath\":"): unexpected end of JSON input`
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message %q, got %q", expectedMsg, err.Error())
	}
}

func TestIgnoreFileError(t *testing.T) {
	err := NewIgnoreFileError("/proj/.eslintignore", fs.ErrPermission)

	if !errors.Is(err, fs.ErrPermission) {
		t.Errorf("Expected error to unwrap to fs.ErrPermission")
	}
	if err.Type != ErrorTypeIgnoreFile {
		t.Errorf("Expected Type to be ErrorTypeIgnoreFile, got %v", err.Type)
	}
}

func TestScanErrorCarriesCause(t *testing.T) {
	err := NewScanError("file /a.js", ErrScanTimeout)

	if !errors.Is(err, ErrScanTimeout) {
		t.Errorf("Expected scan error to unwrap to ErrScanTimeout")
	}
	if errors.Is(err, ErrScanSuperseded) {
		t.Errorf("Did not expect ErrScanSuperseded")
	}
}

func TestConfigError(t *testing.T) {
	underlying := errors.New("invalid value")
	err := NewConfigError("analyzer.format", "sarif", underlying)

	if err.Field != "analyzer.format" {
		t.Errorf("Expected Field to be 'analyzer.format', got %s", err.Field)
	}

	expectedMsg := "config error for field analyzer.format (value sarif): invalid value"
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message %q, got %q", expectedMsg, err.Error())
	}
}

func TestMultiError(t *testing.T) {
	err1 := errors.New("error 1")
	err2 := errors.New("error 2")

	multi := NewMultiError([]error{err1, nil, err2})
	if len(multi.Errors) != 2 {
		t.Errorf("Expected 2 errors after filtering nil, got %d", len(multi.Errors))
	}

	if !errors.Is(multi, err1) || !errors.Is(multi, err2) {
		t.Errorf("Expected multi error to match both errors")
	}

	if NewMultiError(nil).ErrorOrNil() != nil {
		t.Errorf("Expected ErrorOrNil to return nil when empty")
	}

	single := NewMultiError([]error{err1})
	if single.Error() != "error 1" {
		t.Errorf("Expected single error message, got %q", single.Error())
	}
}
