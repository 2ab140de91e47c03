package sqlinline

const QInsertSession = `--sql b4c1d6e8-9a3f-4c82-b1e0-5f7a2d8c4e61
insert into sessions (
  id,
  user_id,
  brand_name,
  product_name,
  market,
  locale,
  state,
  strategy,
  variations,
  created_at,
  updated_at
) values (
  $1::uuid,
  $2::text,
  $3::text,
  $4::text,
  $5::text,
  $6::text,
  $7::text,
  $8::jsonb,
  $9::jsonb,
  now(),
  now()
)
on conflict (id) do update set
  state = excluded.state,
  strategy = excluded.strategy,
  variations = excluded.variations,
  updated_at = now()
returning id;
`

const QListSessionsByUser = `--sql 7e92f3ab-1c45-4d67-98f0-c3b5a6d71e24
select id, brand_name, product_name, market, state, created_at
from sessions
where user_id = $1::text
order by created_at desc
limit $2::int offset $3::int;
`

const QSelectSessionByID = `--sql a1f84c29-6d03-47be-92c7-8e5d1b0f3a46
select id, user_id, brand_name, product_name, market, locale, state, strategy, variations, created_at
from sessions
where id = $1::uuid
limit 1;
`

const QDeleteSession = `--sql d7250b91-3e6a-48cf-a5d4-92c8e1f6b703
delete from sessions
where id = $1::uuid;
`
