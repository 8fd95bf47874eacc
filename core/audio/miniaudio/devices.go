package miniaudio

import (
	"fmt"

	"github.com/gen2brain/malgo"
)

type Device struct {
	ID      malgo.DeviceID
	Name    string
	Default bool
}

// Devices lists the capture and playback devices of the default backend.
func Devices() (capture, playback []Device, err error) {
	audioCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}
	defer func() {
		_ = audioCtx.Uninit()
		audioCtx.Free()
	}()

	if capture, err = devices(audioCtx, malgo.Capture); err != nil {
		return nil, nil, err
	}
	if playback, err = devices(audioCtx, malgo.Playback); err != nil {
		return nil, nil, err
	}
	return capture, playback, nil
}

func devices(audioCtx *malgo.AllocatedContext, kind malgo.DeviceType) ([]Device, error) {
	infos, err := audioCtx.Devices(kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	list := make([]Device, 0, len(infos))
	for _, info := range infos {
		list = append(list, Device{ID: info.ID, Name: info.Name(), Default: info.IsDefault != 0})
	}
	return list, nil
}
