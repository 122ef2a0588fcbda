package wire

// Gateway to agent commands and client request verbs.
const (
	CmdGatewayDiscovery = "GATEWAY_DISCOVERY"
	CmdGetStatus        = "GET_STATUS"

	CmdListDevices   = "LIST_DEVICES"
	CmdControlDevice = "CONTROL_DEVICE"
	CmdSetStatus     = "SET_STATUS"
)

// DeviceCommand is sent by the gateway to an agent, both as the multicast
// discovery probe and over a command session.
//
// Fields: command=1, parameters=2. Parameters is a JSON object string.
type DeviceCommand struct {
	Command    string
	Parameters string
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (m *DeviceCommand) MarshalBinary() ([]byte, error) {
	var e encoder
	e.string(1, m.Command)
	e.string(2, m.Parameters)
	return e.buf, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (m *DeviceCommand) UnmarshalBinary(b []byte) error {
	*m = DeviceCommand{}
	return forEachField(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			m.Command, err = f.string()
		case 2:
			m.Parameters, err = f.string()
		}
		return err
	})
}

// DeviceResponse is an agent's reply to a DeviceCommand.
//
// Fields: success=1, message=2, status=3, attributes=4.
type DeviceResponse struct {
	Success    bool
	Message    string
	Status     string
	Attributes map[string]string
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (m *DeviceResponse) MarshalBinary() ([]byte, error) {
	var e encoder
	e.bool(1, m.Success)
	e.string(2, m.Message)
	e.string(3, m.Status)
	e.stringMap(4, m.Attributes)
	return e.buf, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (m *DeviceResponse) UnmarshalBinary(b []byte) error {
	*m = DeviceResponse{}
	return forEachField(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			m.Success, err = f.bool()
		case 2:
			m.Message, err = f.string()
		case 3:
			m.Status, err = f.string()
		case 4:
			if m.Attributes == nil {
				m.Attributes = make(map[string]string)
			}
			err = f.mapEntry(m.Attributes)
		}
		return err
	})
}

// DeviceDiscovery is the unicast reply an agent sends after a probe.
//
// Fields: device_type=1, ip=2, port=3, status=4.
type DeviceDiscovery struct {
	DeviceType string
	IP         string
	Port       uint32
	Status     string
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (m *DeviceDiscovery) MarshalBinary() ([]byte, error) {
	var e encoder
	e.string(1, m.DeviceType)
	e.string(2, m.IP)
	e.uint32(3, m.Port)
	e.string(4, m.Status)
	return e.buf, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (m *DeviceDiscovery) UnmarshalBinary(b []byte) error {
	*m = DeviceDiscovery{}
	return forEachField(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			m.DeviceType, err = f.string()
		case 2:
			m.IP, err = f.string()
		case 3:
			m.Port, err = f.uint32()
		case 4:
			m.Status, err = f.string()
		}
		return err
	})
}

// SensorSample is a telemetry datagram pushed by an agent.
//
// Fields: device_id=1, sensor_type=2, value=3 (double), unit=4,
// timestamp=5 (unix seconds). Unit may carry the full device state as JSON.
type SensorSample struct {
	DeviceID   string
	SensorType string
	Value      float64
	Unit       string
	Timestamp  int64
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (m *SensorSample) MarshalBinary() ([]byte, error) {
	var e encoder
	e.string(1, m.DeviceID)
	e.string(2, m.SensorType)
	e.double(3, m.Value)
	e.string(4, m.Unit)
	e.int64(5, m.Timestamp)
	return e.buf, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (m *SensorSample) UnmarshalBinary(b []byte) error {
	*m = SensorSample{}
	return forEachField(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			m.DeviceID, err = f.string()
		case 2:
			m.SensorType, err = f.string()
		case 3:
			m.Value, err = f.double()
		case 4:
			m.Unit, err = f.string()
		case 5:
			m.Timestamp, err = f.int64()
		}
		return err
	})
}

// ClientRequest is sent by a client to the gateway command router.
//
// Fields: command=1, device_id=2, action=3, parameters=4.
type ClientRequest struct {
	Command    string
	DeviceID   string
	Action     string
	Parameters string
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (m *ClientRequest) MarshalBinary() ([]byte, error) {
	var e encoder
	e.string(1, m.Command)
	e.string(2, m.DeviceID)
	e.string(3, m.Action)
	e.string(4, m.Parameters)
	return e.buf, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (m *ClientRequest) UnmarshalBinary(b []byte) error {
	*m = ClientRequest{}
	return forEachField(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			m.Command, err = f.string()
		case 2:
			m.DeviceID, err = f.string()
		case 3:
			m.Action, err = f.string()
		case 4:
			m.Parameters, err = f.string()
		}
		return err
	})
}

// DeviceInfo describes one registry entry in a ClientResponse.
//
// Fields: device_id=1, device_type=2, ip=3, port=4, status=5, attributes=6.
type DeviceInfo struct {
	DeviceID   string
	DeviceType string
	IP         string
	Port       uint32
	Status     string
	Attributes map[string]string
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (m *DeviceInfo) MarshalBinary() ([]byte, error) {
	var e encoder
	e.string(1, m.DeviceID)
	e.string(2, m.DeviceType)
	e.string(3, m.IP)
	e.uint32(4, m.Port)
	e.string(5, m.Status)
	e.stringMap(6, m.Attributes)
	return e.buf, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (m *DeviceInfo) UnmarshalBinary(b []byte) error {
	*m = DeviceInfo{}
	return forEachField(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			m.DeviceID, err = f.string()
		case 2:
			m.DeviceType, err = f.string()
		case 3:
			m.IP, err = f.string()
		case 4:
			m.Port, err = f.uint32()
		case 5:
			m.Status, err = f.string()
		case 6:
			if m.Attributes == nil {
				m.Attributes = make(map[string]string)
			}
			err = f.mapEntry(m.Attributes)
		}
		return err
	})
}

// ClientResponse is the gateway's reply to a ClientRequest.
//
// Fields: success=1, message=2, devices=3 (repeated DeviceInfo).
type ClientResponse struct {
	Success bool
	Message string
	Devices []DeviceInfo
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (m *ClientResponse) MarshalBinary() ([]byte, error) {
	var e encoder
	e.bool(1, m.Success)
	e.string(2, m.Message)
	for i := range m.Devices {
		b, err := m.Devices[i].MarshalBinary()
		if err != nil {
			return nil, err
		}
		e.message(3, b)
	}
	return e.buf, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (m *ClientResponse) UnmarshalBinary(b []byte) error {
	*m = ClientResponse{}
	return forEachField(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			m.Success, err = f.bool()
		case 2:
			m.Message, err = f.string()
		case 3:
			var raw []byte
			if raw, err = f.bytes(); err != nil {
				return err
			}
			var d DeviceInfo
			if err = d.UnmarshalBinary(raw); err != nil {
				return err
			}
			m.Devices = append(m.Devices, d)
		}
		return err
	})
}
