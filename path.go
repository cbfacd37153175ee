package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

var ErrEmptyPath = errors.New("snapshot path is empty")

// 快照来源：本地YAML文件或MongoDB的{db}.{col}
type Path struct {
	File string
	DB   string
	Coll string
}

func NewPath(filePathOrColl string) (*Path, error) {
	// 检查filePathOrColl是否作为文件存在
	if _, err := os.Stat(filePathOrColl); err == nil {
		return &Path{
			File: filePathOrColl,
		}, nil
	}
	dbDotColl := strings.TrimSpace(filePathOrColl)
	if dbDotColl == "" {
		return nil, ErrEmptyPath
	}
	splitted := strings.Split(dbDotColl, ".")
	if len(splitted) != 2 || splitted[0] == "" || splitted[1] == "" {
		return nil, fmt.Errorf("dbDotColl is invalid: %s", dbDotColl)
	}
	return &Path{
		DB:   splitted[0],
		Coll: splitted[1],
	}, nil
}

func (p *Path) IsFile() bool {
	return p.File != ""
}

func (p *Path) GetDb() string {
	return p.DB
}

func (p *Path) GetColl() string {
	return p.Coll
}

func (p *Path) String() string {
	if p.IsFile() {
		return p.File
	}
	return p.DB + "." + p.Coll
}
