package adb

var EscapeInputText = escapeInputText
