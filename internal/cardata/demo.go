package cardata

import (
	_ "embed"
)

//go:embed demo.json
var demoExport []byte

// Demo 内置的演示数据（CarData 格式）
func Demo() (*Export, error) {
	return DecodeBytes(demoExport)
}

// LoadDemo 有配置文件时读取文件，否则使用内置数据
func LoadDemo(path string) (*Export, error) {
	if path == "" {
		return Demo()
	}
	return ReadFile(path)
}
