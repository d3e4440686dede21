package protocol

// IconSet is a player's icon selection, one mode id per game mode plus the
// two color slots.
type IconSet struct {
	Cube   int16
	Ship   int16
	Ball   int16
	UFO    int16
	Wave   int16
	Robot  int16
	Spider int16
	Color1 int8
	Color2 int8
}

func (i *IconSet) encode(w *Writer) {
	w.WriteInt16(i.Cube)
	w.WriteInt16(i.Ship)
	w.WriteInt16(i.Ball)
	w.WriteInt16(i.UFO)
	w.WriteInt16(i.Wave)
	w.WriteInt16(i.Robot)
	w.WriteInt16(i.Spider)
	w.WriteInt8(i.Color1)
	w.WriteInt8(i.Color2)
}

func (i *IconSet) decode(r *Reader) error {
	var err error
	if i.Cube, err = r.ReadInt16(); err != nil {
		return err
	}
	if i.Ship, err = r.ReadInt16(); err != nil {
		return err
	}
	if i.Ball, err = r.ReadInt16(); err != nil {
		return err
	}
	if i.UFO, err = r.ReadInt16(); err != nil {
		return err
	}
	if i.Wave, err = r.ReadInt16(); err != nil {
		return err
	}
	if i.Robot, err = r.ReadInt16(); err != nil {
		return err
	}
	if i.Spider, err = r.ReadInt16(); err != nil {
		return err
	}
	if i.Color1, err = r.ReadInt8(); err != nil {
		return err
	}
	if i.Color2, err = r.ReadInt8(); err != nil {
		return err
	}
	return nil
}

// PlayerAccountData is the profile information the registry serves for a
// logged-in account.
type PlayerAccountData struct {
	AccountID int32
	Name      string
	Icons     IconSet
}

func (p *PlayerAccountData) encode(w *Writer) {
	w.WriteInt32(p.AccountID)
	w.WriteString(p.Name)
	p.Icons.encode(w)
}

func (p *PlayerAccountData) decode(r *Reader) error {
	var err error
	if p.AccountID, err = r.ReadInt32(); err != nil {
		return err
	}
	if p.Name, err = r.ReadString(); err != nil {
		return err
	}
	return p.Icons.decode(r)
}

// MaxVoiceFrames caps the number of audio frames in a single voice packet.
const MaxVoiceFrames = 64

// VoiceData is a batch of opus-encoded audio frames.
type VoiceData struct {
	Frames [][]byte
}

// TotalSize returns the summed byte length of all frames, the figure the
// voice throughput gate meters.
func (v *VoiceData) TotalSize() int {
	total := 0
	for _, f := range v.Frames {
		total += len(f)
	}
	return total
}

func (v *VoiceData) encode(w *Writer) {
	w.WriteUint8(uint8(len(v.Frames)))
	for _, f := range v.Frames {
		w.WriteBytes(f)
	}
}

func (v *VoiceData) decode(r *Reader) error {
	count, err := r.ReadUint8()
	if err != nil {
		return err
	}
	if count > MaxVoiceFrames {
		return ErrTooManyVoiceFrames
	}
	v.Frames = make([][]byte, count)
	for i := range v.Frames {
		if v.Frames[i], err = r.ReadBytes(); err != nil {
			return err
		}
	}
	return nil
}
