package models

import "myohand/device"

func RegisterBusTypes() {
	// 注册 Dynamixel 串口总线与模拟总线
	device.RegisterBusType("dynamixel", NewDynamixelBus)
	device.RegisterBusType("sim", NewSimBus)
}
