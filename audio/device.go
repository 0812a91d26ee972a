package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

var errPickerAborted = errors.New("device selection aborted")

// SelectDevice asks which input to record from. A single input is returned
// without prompting. Ctrl+C exits the process with status 130.
func SelectDevice(ctx Context) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("%w: no capture devices found", ErrDeviceUnavailable)
	}
	if len(devices) == 1 {
		return &devices[0], nil
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw mode: %w", err)
	}
	d, err := runPicker(os.Stdin, os.Stdout, devices)
	term.Restore(fd, oldState)
	if errors.Is(err, errPickerAborted) {
		os.Exit(130)
	}
	return d, err
}

type picker struct {
	devices []DeviceInfo
	cursor  int
}

func runPicker(in io.Reader, out io.Writer, devices []DeviceInfo) (*DeviceInfo, error) {
	p := &picker{devices: devices}
	p.render(out)

	buf := make([]byte, 3)
	for {
		n, err := in.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}
		done, abort := p.key(buf[:n])
		if abort {
			fmt.Fprint(out, "\r\n")
			return nil, errPickerAborted
		}
		if done {
			fmt.Fprint(out, "\r\n")
			return &p.devices[p.cursor], nil
		}
		fmt.Fprintf(out, "\x1b[%dA", len(p.devices)+2)
		p.render(out)
	}
}

// key applies one keypress: arrows or j/k move, Enter confirms, Ctrl+C aborts.
func (p *picker) key(b []byte) (done, abort bool) {
	up := func() {
		if p.cursor > 0 {
			p.cursor--
		}
	}
	down := func() {
		if p.cursor < len(p.devices)-1 {
			p.cursor++
		}
	}
	switch {
	case len(b) == 1:
		switch b[0] {
		case '\r', '\n':
			return true, false
		case 3:
			return false, true
		case 'j':
			down()
		case 'k':
			up()
		}
	case len(b) == 3 && b[0] == 0x1b && b[1] == '[':
		switch b[2] {
		case 'A':
			up()
		case 'B':
			down()
		}
	}
	return false, false
}

func (p *picker) render(w io.Writer) {
	fmt.Fprint(w, "\r\x1b[J")
	fmt.Fprint(w, "Record from (↑/↓, Enter to confirm):\r\n\r\n")
	for i, d := range p.devices {
		tag := ""
		if IsBluetooth(d.Name) {
			tag = " \x1b[33m[headset mic, narrowband]\x1b[0m"
		}
		if i == p.cursor {
			fmt.Fprintf(w, "  \x1b[1;36m▶ %s%s\x1b[0m\r\n", d.Name, tag)
		} else {
			fmt.Fprintf(w, "    %s%s\r\n", d.Name, tag)
		}
	}
}
