package flow

func (s *UnitTestSuite) TestEvalAny() {
	obj := map[string]any{
		"key1": "value1",
		"key2": map[string]any{
			"subkey1": "subvalue1",
			"subkey2": 42,
		},
		"key3": []any{"elem1", "elem2", "elem3"},
		"key4": nil,
	}

	v, err := EvalAny("key1", obj)
	s.NoError(err)
	s.Equal("value1", v.(string))

	v, err = EvalAny("key2.subkey2", obj)
	s.NoError(err)
	s.Equal(42, v.(int))

	v, err = EvalAny("key3[1]", obj)
	s.NoError(err)
	s.Equal("elem2", v.(string))

	v, err = EvalAny("key4", obj)
	s.NoError(err)
	s.Nil(v)

	v, err = EvalAny("nonexistent", obj)
	s.NoError(err)
	s.Nil(v)

	_, err = EvalAny("results[", obj)
	s.Error(err)
}

func (s *UnitTestSuite) TestUpstreamBodyExtraction() {
	body, err := DecodeJSONObject([]byte(`{"count":1,"results":[{"listing_id":84634415230,"quantity":6,"price":"10.00"}]}`))
	s.Require().NoError(err)

	id, err := EvalString("results[0].listing_id", body)
	s.NoError(err)
	s.Require().NotNil(id)
	s.Equal("84634415230", *id)

	q, ok, err := EvalInt("results[0].quantity", body)
	s.NoError(err)
	s.True(ok)
	s.Equal(int64(6), q)

	_, ok, err = EvalInt("results[0].missing", body)
	s.NoError(err)
	s.False(ok)

	_, ok, err = EvalInt("results[0].price", body)
	s.NoError(err)
	s.False(ok)

	_, err = DecodeJSONObject([]byte(`[1,2]`))
	s.Error(err)
	_, err = DecodeJSONObject([]byte(`null`))
	s.Error(err)
}
